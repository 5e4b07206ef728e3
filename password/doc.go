// Package password implements argon2id password hashing for provider-side credential tables.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker costs so the caller can
// re-hash after the next successful sign-in.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other package of this module.
//   - Log plaintext passwords.
package password

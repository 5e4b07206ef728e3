package flows

// Deps groups flow dependency sets. The root engine builds this once and delegates each
// operation to the matching flow implementation.
type Deps struct {
	Validate   ValidateDeps
	Revocation RevocationDeps
	Watch      WatchDeps
	LoginUser  LoginUserDeps
	LoginAdmin LoginAdminDeps
	Logout     LogoutDeps
}

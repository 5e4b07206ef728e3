package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Floors accepted for both configuration and stored hashes.
var minCosts = costs{memory: 8 * 1024, time: 1, threads: 1}

const (
	minSaltLength = 16
	minKeyLength  = 16
)

const (
	// DefaultMinPasswordBytes applies when Config.MinPasswordBytes is zero.
	DefaultMinPasswordBytes = 10
	// DefaultMaxPasswordBytes applies when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordEmpty    = errors.New("password is empty")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	// ErrMalformedHash is returned for stored values that are not argon2id PHC strings this
	// package can verify.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds argon2id cost parameters and password length bounds.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinPasswordBytes and MaxPasswordBytes bound the raw password length. Zero selects the
	// package defaults.
	MinPasswordBytes int
	MaxPasswordBytes int
}

// DefaultConfig returns the costs used for new credentials when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      19 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) costs() costs {
	return costs{memory: c.Memory, time: c.Time, threads: c.Parallelism}
}

// costs are the tunable argon2id work factors. Memory is in KiB.
type costs struct {
	memory  uint32
	time    uint32
	threads uint8
}

func (c costs) below(floor costs) bool {
	return c.memory < floor.memory || c.time < floor.time || c.threads < floor.threads
}

// phc is one decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" value.
type phc struct {
	costs
	salt []byte
	key  []byte
}

var b64 = base64.RawStdEncoding

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		algorithmID, argon2.Version, p.params(), b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func (p phc) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, p.threads)
}

func derive(password string, salt []byte, c costs, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, keyLen)
}

func decodePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return phc{}, ErrMalformedHash
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phc{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	var out phc
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.memory, &out.time, &out.threads); err != nil {
		return phc{}, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[3])
	}
	// Reject trailing or reordered parameters that Sscanf would let through.
	if out.params() != fields[3] || out.costs.below(minCosts) {
		return phc{}, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[3])
	}

	var err error
	if out.salt, err = b64.DecodeString(fields[4]); err != nil || len(out.salt) < minSaltLength {
		return phc{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.key, err = b64.DecodeString(fields[5]); err != nil || len(out.key) == 0 {
		return phc{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return out, nil
}

// Argon2 hashes and verifies passwords as argon2id PHC strings. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinPasswordBytes == 0 {
		cfg.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	switch {
	case cfg.costs().below(minCosts):
		return nil, fmt.Errorf("password costs must be at least m=%d,t=%d,p=%d", minCosts.memory, minCosts.time, minCosts.threads)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	case cfg.MinPasswordBytes < 1 || cfg.MaxPasswordBytes < cfg.MinPasswordBytes:
		return nil, errors.New("password length bounds are invalid")
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns the PHC encoding of password under the configured costs. Password bytes are
// used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrPasswordEmpty
	case len(password) < a.config.MinPasswordBytes:
		return "", fmt.Errorf("%w: must be at least %d bytes", ErrPasswordTooShort, a.config.MinPasswordBytes)
	case len(password) > a.config.MaxPasswordBytes:
		return "", fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, a.config.MaxPasswordBytes)
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	c := a.config.costs()
	return phc{costs: c, salt: salt, key: derive(password, salt, c, a.config.KeyLength)}.String(), nil
}

// Verify reports whether password matches encodedHash, deriving with the costs stored in the
// hash. An oversized password is rejected before any key derivation.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := derive(password, stored.salt, stored.costs, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker costs or a different key
// length than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return stored.costs.below(a.config.costs()) || uint32(len(stored.key)) != a.config.KeyLength, nil
}

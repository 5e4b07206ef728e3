package federated

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/google/uuid"
)

const localProviderName = "local"

// LocalConfig tunes [Local].
type LocalConfig struct {
	// Password configures argon2id hashing of account passwords. The zero value selects
	// [password.DefaultConfig].
	Password password.Config
	// MaxFailedAttempts locks an account with TOO_MANY_ATTEMPTS_TRY_LATER after that many
	// consecutive wrong passwords. Zero disables the lock.
	MaxFailedAttempts int
	// Tokens signs ID tokens for signed-in identities. Optional.
	Tokens *jwt.Manager
	// Buffer is the per-subscription event buffer.
	Buffer int
}

type localAccount struct {
	uid      string
	email    string
	name     string
	hash     string
	disabled bool
	failures int
}

// Local is an in-process federated provider. It keeps accounts in memory, verifies
// passwords with argon2id, and broadcasts sign-in state through a [Hub].
type Local struct {
	cfg      LocalConfig
	hasher   *password.Argon2
	hub      *Hub
	mu       sync.Mutex
	accounts map[string]*localAccount
	now      func() time.Time
}

// NewLocal returns an empty provider. It fails only when cfg.Password is invalid.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Password == (password.Config{}) {
		cfg.Password = password.DefaultConfig()
	}
	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}
	return &Local{
		cfg:      cfg,
		hasher:   hasher,
		hub:      NewHub(cfg.Buffer),
		accounts: make(map[string]*localAccount),
		now:      time.Now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddAccount registers an account and returns its uid.
func (l *Local) AddAccount(email, pass, displayName string) (string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", &ProviderError{Provider: localProviderName, Operation: "add account", Code: CodeInvalidEmail, Err: err}
	}
	hash, err := l.hasher.Hash(pass)
	if err != nil {
		code := CodeWeakPassword
		if errors.Is(err, password.ErrPasswordEmpty) {
			code = CodeMissingPassword
		}
		return "", &ProviderError{Provider: localProviderName, Operation: "add account", Code: code, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[email]; exists {
		return "", errors.New("account already exists")
	}
	acct := &localAccount{
		uid:   uuid.NewString(),
		email: email,
		name:  displayName,
		hash:  hash,
	}
	l.accounts[email] = acct
	return acct.uid, nil
}

// SetDisabled toggles provider-side disabling. A disabled account cannot sign in; if it is the
// current identity it is signed out.
func (l *Local) SetDisabled(email string, disabled bool) error {
	email = normalizeEmail(email)

	l.mu.Lock()
	acct, ok := l.accounts[email]
	if ok {
		acct.disabled = disabled
	}
	l.mu.Unlock()

	if !ok {
		return &ProviderError{Provider: localProviderName, Operation: "disable", Code: CodeEmailNotFound}
	}
	if disabled {
		if cur := l.hub.Current(); cur != nil && cur.Email == email {
			l.hub.Publish(nil)
		}
	}
	return nil
}

// SignIn verifies pass against the stored hash. Hashes produced under weaker costs are
// replaced after a successful sign-in.
func (l *Local) SignIn(ctx context.Context, email, pass string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeNetworkRequestFailed, Err: err}
	}
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeInvalidEmail, Err: err}
	}
	if pass == "" {
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeMissingPassword}
	}

	l.mu.Lock()
	acct, ok := l.accounts[email]
	if !ok {
		l.mu.Unlock()
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeEmailNotFound}
	}
	if acct.disabled {
		l.mu.Unlock()
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeUserDisabled}
	}
	if l.cfg.MaxFailedAttempts > 0 && acct.failures >= l.cfg.MaxFailedAttempts {
		l.mu.Unlock()
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeTooManyAttempts}
	}
	hash := acct.hash
	l.mu.Unlock()

	matched, err := l.hasher.Verify(pass, hash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeInternalError, Err: err}
	}
	var upgraded string
	if matched {
		if stale, _ := l.hasher.NeedsUpgrade(hash); stale {
			// A failed rehash keeps the old hash; the next sign-in retries.
			upgraded, _ = l.hasher.Hash(pass)
		}
	}

	l.mu.Lock()
	if !matched {
		acct.failures++
		l.mu.Unlock()
		return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeInvalidPassword}
	}
	acct.failures = 0
	if upgraded != "" && acct.hash == hash {
		acct.hash = upgraded
	}
	identity := &Identity{UID: acct.uid, Email: acct.email, DisplayName: acct.name}
	l.mu.Unlock()

	if l.cfg.Tokens != nil {
		token, err := l.cfg.Tokens.Issue(identity.UID, identity.Email, identity.DisplayName, l.now())
		if err != nil {
			return nil, &ProviderError{Provider: localProviderName, Operation: "sign in", Code: CodeInternalError, Err: err}
		}
		identity.IDToken = token
	}

	l.hub.Publish(identity)
	return identity.clone(), nil
}

func (l *Local) SignOut(context.Context) error {
	l.hub.Publish(nil)
	return nil
}

func (l *Local) Subscribe() *Subscription {
	return l.hub.Subscribe()
}

func (l *Local) Current() *Identity {
	return l.hub.Current()
}

// Hub exposes the underlying broadcaster.
func (l *Local) Hub() *Hub {
	return l.hub
}

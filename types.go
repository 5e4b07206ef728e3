package goSession

import (
	"github.com/MrEthical07/goSession/session"
)

// AuthSource identifies which identity source established a session.
type AuthSource string

const (
	SourceNone      AuthSource = ""
	SourceAPIToken  AuthSource = "apiToken"
	SourceFederated AuthSource = "federated"
)

func (s AuthSource) String() string {
	if s == SourceNone {
		return "none"
	}
	return string(s)
}

// Status is the session lifecycle state.
type Status int

const (
	// StatusUnresolved is the state before Start has run. It is never re-entered.
	StatusUnresolved Status = iota
	// StatusRestoring means startup is still deciding.
	StatusRestoring
	// StatusActive means a user is signed in.
	StatusActive
	// StatusUnauthenticated means nobody is signed in. A login re-enters StatusActive.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusRestoring:
		return "restoring"
	case StatusActive:
		return "active"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// User is the signed-in account. It is replaced wholesale, never edited in place.
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	AuthSource AuthSource `json:"authSource"`
}

func userFromRecord(r session.UserRecord, source AuthSource) *User {
	return &User{
		ID:         r.ID,
		Email:      r.Email,
		Name:       r.Name,
		Role:       r.Role,
		AuthSource: source,
	}
}

func (u *User) record() session.UserRecord {
	return session.UserRecord{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Session is a snapshot of the engine's single session. Snapshots are values; mutating one
// has no effect on the engine.
type Session struct {
	User   *User      `json:"user,omitempty"`
	Source AuthSource `json:"source"`
	Status Status     `json:"status"`
	// Epoch increases on every login, logout, revocation and federated sign-out.
	Epoch uint64 `json:"epoch"`
}

// Active reports whether a user is signed in.
func (s Session) Active() bool {
	return s.Status == StatusActive && s.User != nil
}

// Email returns the signed-in email or "".
func (s Session) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// LoginResult is the display form of a login attempt.
type LoginResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	User    *User  `json:"user,omitempty"`
}

package session

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable wraps backend failures of a [Store].
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEmptyToken is returned by Write when the token is blank.
	ErrEmptyToken = errors.New("session token is empty")
	// ErrCorruptUser is returned when a persisted user record cannot be decoded.
	ErrCorruptUser = errors.New("persisted user record corrupt")
)

// UserRecord is the persisted form of a user: exactly the fields the backend returns.
type UserRecord struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// Record is the persisted session. User is nil when only the token survived.
type Record struct {
	Token string
	User  *UserRecord
}

// Complete reports whether both halves of the pair are present.
func (r *Record) Complete() bool {
	return r != nil && r.Token != "" && r.User != nil
}

// Store persists the token+user pair.
//
// Read returns (nil, nil) when nothing is persisted. Write is all-or-nothing. Clear is
// idempotent.
type Store interface {
	Read(ctx context.Context) (*Record, error)
	Write(ctx context.Context, token string, user UserRecord) error
	Clear(ctx context.Context) error
}

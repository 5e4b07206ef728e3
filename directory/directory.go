package directory

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound means the directory holds no record for the email.
var ErrNotFound = errors.New("directory record not found")

// Record is the directory's view of an admin account.
type Record struct {
	Email    string `json:"email"`
	Disabled bool   `json:"disabled"`
}

// Directory answers disabled-account queries.
type Directory interface {
	Lookup(ctx context.Context, email string) (Record, error)
}

// NormalizeEmail trims and lowercases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseDisabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package federated

import (
	"context"
	"time"
)

// Identity is the provider's view of the signed-in account.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	IDToken     string
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Event is one emission of the auth-state stream. A nil Identity means signed out.
type Event struct {
	Identity *Identity
	At       time.Time
}

// SignedIn reports whether the event carries an identity.
func (e Event) SignedIn() bool {
	return e.Identity != nil
}

// Provider is a federated identity source.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Subscribe() *Subscription
	Current() *Identity
}

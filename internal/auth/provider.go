// Package auth is the identity provider behind a session: credential
// creation and verification, email verification, sign-out and identity
// change notification.
package auth

import "context"

// Identity is the provider-side view of a signed-in user.
type Identity struct {
	ID            string
	Email         string
	EmailVerified bool
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Listener receives the current identity, or nil after sign-out.
type Listener func(ctx context.Context, id *Identity)

// Provider is the contract a session depends on.
//
// Subscribe invokes the listener once immediately with the current identity
// and again on every sign-in and sign-out. CreateCredential does not sign the
// new identity in; VerifyCredential does.
type Provider interface {
	Subscribe(ctx context.Context, l Listener) (unsubscribe func())
	CreateCredential(ctx context.Context, email, password string) (*Identity, error)
	VerifyCredential(ctx context.Context, email, password string) (*Identity, error)
	SendVerificationEmail(ctx context.Context, id *Identity) error
	SignOut(ctx context.Context) error
	Reload(ctx context.Context) (*Identity, error)
	CurrentIdentity() *Identity
}

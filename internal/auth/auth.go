package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// Role names a class of privileged operations.
type Role string

const (
	// RoleAdmin covers queue operation: calling numbers, editing tickets, export.
	RoleAdmin Role = "admin"
	// RoleDestructive covers reset and bulk import.
	RoleDestructive Role = "destructive"
)

// ErrDenied is returned when a credential does not grant the requested role.
var ErrDenied = errors.New("credential does not grant access")

// Authenticator decides whether a presented credential grants a role.
type Authenticator interface {
	Authorize(ctx context.Context, role Role, credential string) error
}

// SharedSecret authorizes a role by comparing the credential with a configured
// secret. A role without a secret rejects every credential.
type SharedSecret struct {
	secrets map[Role][]byte
}

// NewSharedSecret creates an authenticator from role secrets.
func NewSharedSecret(secrets map[Role]string) *SharedSecret {
	s := &SharedSecret{secrets: make(map[Role][]byte, len(secrets))}
	for role, secret := range secrets {
		if secret == "" {
			continue
		}
		s.secrets[role] = []byte(secret)
	}
	return s
}

// Authorize implements Authenticator.
func (s *SharedSecret) Authorize(_ context.Context, role Role, credential string) error {
	want, ok := s.secrets[role]
	if !ok || credential == "" {
		return ErrDenied
	}
	if subtle.ConstantTimeCompare(want, []byte(credential)) != 1 {
		return ErrDenied
	}
	return nil
}

// Package credentials owns the OAuth material for every connected tenant.
package credentials

import (
	"context"

	model "github.com/pulseboard/pulseboard/internal/domain/model"
)

// Key identifies one credential slot.
type Key struct {
	Platform string
	Tenant   string
}

func (k Key) String() string {
	return k.Platform + "|" + k.Tenant
}

// Exchanger trades a refresh token for a fresh credential at the platform's
// token endpoint. The http adapter provides the real implementation.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (model.Credential, error)
}

// Store provides read/write access to credential state.
type Store interface {
	// Get returns the active credential for the key.
	// Returns ErrNotFound if the tenant is not connected.
	Get(ctx context.Context, key Key) (model.Credential, error)

	// Set replaces the credential for the key atomically and persists it.
	Set(ctx context.Context, key Key, cred model.Credential) error

	// Delete disconnects the tenant, removing its credential.
	Delete(ctx context.Context, key Key) error

	// Refresh exchanges the stored refresh token for a new credential.
	// Concurrent callers for the same key share a single in-flight
	// exchange. On failure the stored credential is left untouched.
	Refresh(ctx context.Context, key Key) (model.Credential, error)

	// Keys returns every connected credential slot.
	Keys(ctx context.Context) []Key

	// Count returns the number of connected tenants.
	Count(ctx context.Context) int
}

package ports

import (
	"context"
	"time"

	"github.com/helios-labs/walletgate/core"
)

// KeyStore is a TTL-bounded presence store. It backs both nonce consumption
// (challenges are single use) and refresh token revocation.
type KeyStore interface {
	Invalidate(ctx context.Context, id string, expiry time.Duration) error
	IsInvalidated(ctx context.Context, id string) (bool, error)
}

// UserStore persists provisioned users. FindOrCreate must be idempotent
// under concurrent first logins for the same address: a duplicate insert is
// resolved by fetching the existing row, never surfaced as an error.
type UserStore interface {
	FindByEmail(ctx context.Context, teamID, email string) (*core.User, error)
	// FindOrCreate returns the stored user and whether it was created by
	// this call.
	FindOrCreate(ctx context.Context, user *core.User) (*core.User, bool, error)
}

// TeamStore resolves teams from the request host.
type TeamStore interface {
	FindBySubdomain(ctx context.Context, subdomain string) (*core.Team, error)
}

package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSignIn(ctx context.Context, address, teamID string, isNewUser bool) error
	PublishLogout(ctx context.Context, address string, tokenID string) error
}

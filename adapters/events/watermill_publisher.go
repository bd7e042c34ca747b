package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/helios-labs/walletgate/ports"
)

// SignInEvent is emitted after a session is established.
type SignInEvent struct {
	Address   string `json:"address"`
	TeamID    string `json:"team_id"`
	IsNewUser bool   `json:"is_new_user"`
}

// LogoutEvent is emitted after a refresh token is invalidated.
type LogoutEvent struct {
	Address string `json:"address"`
	TokenID string `json:"token_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher   message.Publisher
	signInTopic string
	logoutTopic string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher:   publisher,
		signInTopic: "walletgate.signin",
		logoutTopic: "walletgate.logout",
	}
}

// PublishSignIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignIn(ctx context.Context, address, teamID string, isNewUser bool) error {
	event := SignInEvent{
		Address:   address,
		TeamID:    teamID,
		IsNewUser: isNewUser,
	}

	return p.publish(p.signInTopic, uuid.New().String(), event)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	event := LogoutEvent{
		Address: address,
		TokenID: tokenID,
	}

	return p.publish(p.logoutTopic, tokenID, event)
}

func (p *WatermillPublisher) publish(topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

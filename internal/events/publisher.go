package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/util"
)

// Event types emitted on the audit topic.
const (
	TypeAccountRegistered = "account.registered"
	TypeAccountVerified   = "account.verified"
	TypeLoginSucceeded    = "login.succeeded"
	TypeLoginFailed       = "login.failed"
	TypeOTPReissued       = "otp.reissued"
	TypeRolePromoted      = "role.promoted"
)

type AuthEvent struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits auth audit events to Kafka. A nil *Publisher is
// valid and drops every event, so callers never need to branch on
// whether auditing is wired.
type Publisher struct {
	producer *client.KafkaProducer
	topic    string
}

func NewPublisher(producer *client.KafkaProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Emit publishes an event, logging instead of failing the caller when
// the broker is unavailable: auditing must never block an auth flow.
func (p *Publisher) Emit(ctx context.Context, eventType, email, reason string) {
	if p == nil || p.producer == nil {
		return
	}

	payload, err := json.Marshal(AuthEvent{
		Type:       eventType,
		Email:      email,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		util.Error("Failed to encode auth event", zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, p.topic, email, payload); err != nil {
		util.Warn("Failed to publish auth event",
			zap.String("type", eventType),
			zap.Error(err))
	}
}

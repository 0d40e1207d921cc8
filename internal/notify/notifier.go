package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/util"
)

// Notifier delivers a message to a user-controlled channel. Delivery
// failures surface as infrastructure errors; retry policy, if any,
// belongs to the implementation, not its callers.
type Notifier interface {
	Send(ctx context.Context, destination, subject, body string) error
}

// emailMessage is the wire shape consumed by the mail delivery worker.
type emailMessage struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	QueuedAt  time.Time `json:"queued_at"`
	Requester string    `json:"requester"`
}

// KafkaNotifier hands messages to a Kafka topic for an out-of-band mail
// worker. The worker itself is a separate deployment.
type KafkaNotifier struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaNotifier(producer *client.KafkaProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Send(ctx context.Context, destination, subject, body string) error {
	payload, err := json.Marshal(emailMessage{
		To:        destination,
		Subject:   subject,
		Body:      body,
		QueuedAt:  time.Now().UTC(),
		Requester: "identity-service",
	})
	if err != nil {
		return fmt.Errorf("failed to encode email message: %w", err)
	}

	if err := n.producer.Publish(ctx, n.topic, destination, payload); err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}

	util.Debug("Email queued for delivery",
		zap.String("to", destination),
		zap.String("subject", subject))
	return nil
}

// LogNotifier writes the message to the log instead of delivering it.
// Development use only: it prints the OTP in plain text.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, destination, subject, body string) error {
	n.logger.Info("Notification (log delivery)",
		zap.String("to", destination),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

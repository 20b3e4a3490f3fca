package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golden-vcr/accounts/internal/store"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MessageTypeLogin          = "login"
	MessageTypeProfileChanged = "profile_changed"
)

// Message is the JSON body of every message published to AMQP. Token secrets are
// never included.
type Message struct {
	Type   string               `json:"type"`
	User   *store.User          `json:"user"`
	IsNew  bool                 `json:"isNew"`
	Token  *store.Token         `json:"token,omitempty"`
	Change *store.ProfileChange `json:"change,omitempty"`
}

// Channel is the subset of *amqp.Channel required to publish messages
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards events from a Bus to a fanout exchange, so that other services
// can react to logins and profile changes
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher opens a channel on the given connection and declares the exchange
// that messages will be published to
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Attach registers the Publisher as a handler for all events emitted on the bus
func (p *Publisher) Attach(bus *Bus) {
	bus.OnLogin(func(ctx context.Context, ev Login) error {
		return p.publish(ctx, &Message{
			Type:  MessageTypeLogin,
			User:  ev.User,
			IsNew: ev.IsNew,
			Token: ev.Token,
		})
	})
	bus.OnProfileChanged(func(ctx context.Context, ev ProfileChanged) error {
		return p.publish(ctx, &Message{
			Type:   MessageTypeProfileChanged,
			User:   ev.User,
			IsNew:  ev.IsNew,
			Change: ev.Change,
		})
	})
}

func (p *Publisher) publish(ctx context.Context, message *Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to serialize %s message: %w", message.Type, err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Type:        message.Type,
		Timestamp:   p.now(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s message: %w", message.Type, err)
	}
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/pureclean/api/internal/domain"
)

// OrderCreatedEvent is the message body published when a wizard run commits
// an order. Downstream consumers (receipts, notifications, reporting) key off
// the order id.
type OrderCreatedEvent struct {
	OrderID      string    `json:"orderId"`
	ClientID     string    `json:"clientId,omitempty"`
	ClientName   string    `json:"clientName,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	ItemCount    int       `json:"itemCount"`
	FinalTotal   float64   `json:"finalTotal"`
	PaidAmount   float64   `json:"paidAmount"`
	Debt         float64   `json:"debt"`
	ExpectedDate time.Time `json:"expectedDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderCreated enqueues an order-created event on the configured topic
// and returns the server-assigned message id.
func (p *PubSubOrderPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order publisher: not initialised")
	}
	if order == nil {
		return "", errors.New("pubsub order publisher: order is required")
	}

	event := OrderCreatedEvent{
		OrderID:      order.ID,
		ClientID:     order.Client.ClientID,
		ClientName:   order.Client.ClientName,
		Branch:       order.Client.Branch,
		ItemCount:    len(order.Items),
		FinalTotal:   order.Parameters.FinalTotal,
		PaidAmount:   order.Parameters.Payment.PaidAmount,
		Debt:         order.Parameters.Debt,
		ExpectedDate: order.Parameters.Execution.ExpectedDate,
		CreatedAt:    order.CreatedAt,
	}
	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", "order.created")
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "branch", order.Client.Branch)
	setAttr(attrs, "itemCount", strconv.Itoa(len(order.Items)))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

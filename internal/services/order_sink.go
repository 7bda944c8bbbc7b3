package services

import (
	"context"
	"errors"

	domain "github.com/pureclean/api/internal/domain"
)

// OrderEventPublisher announces committed orders to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) (string, error)
}

// OrderSinkDeps wires the order sink dependencies. Events is optional: when
// nil, commits are persisted without publishing.
type OrderSinkDeps struct {
	Orders OrderRepository
	Events OrderEventPublisher
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderSink struct {
	orders OrderRepository
	events OrderEventPublisher
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderSink constructs an OrderSink that persists the order and then
// publishes an order-created event. Persistence failures fail the commit;
// publish failures are logged and swallowed so a flaky broker cannot block
// order intake.
func NewOrderSink(deps OrderSinkDeps) (OrderSink, error) {
	if deps.Orders == nil {
		return nil, errors.New("order sink: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderSink{orders: deps.Orders, events: deps.Events, logger: logger}, nil
}

func (s *orderSink) Commit(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order sink: order with id is required")
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}
	s.logger(ctx, "orders.committed", map[string]any{
		"orderId":    order.ID,
		"itemCount":  len(order.Items),
		"finalTotal": order.Parameters.FinalTotal,
	})

	if s.events == nil {
		return nil
	}
	if msgID, err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger(ctx, "orders.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	} else {
		s.logger(ctx, "orders.event_published", map[string]any{
			"orderId":   order.ID,
			"messageId": msgID,
		})
	}
	return nil
}

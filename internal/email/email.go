package email

import (
	"context"

	"github.com/Domenick1991/pickupslots/internal/kafka"
	"go.uber.org/zap"
)

// Sender hands order notifications to the mail relay. Rendering and delivery
// live outside this service; the sender records what would be sent.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(_ context.Context, event kafka.SlotEvent) error {
	if !event.IsOrderEvent() || event.Email == "" {
		return nil
	}

	s.logger.Info("send pickup notification",
		zap.String("to", event.Email),
		zap.String("subject", Subject(event.Type)),
		zap.String("type", string(event.Type)),
		zap.String("order_id", event.OrderID),
		zap.String("slot", event.SlotDate+" "+event.SlotTime),
	)
	return nil
}

// Subject returns the mail subject for an order event.
func Subject(t kafka.EventType) string {
	switch t {
	case kafka.EventOrderPlaced:
		return "Your pickup time is reserved"
	case kafka.EventOrderPaid:
		return "Payment received, see you at pickup"
	case kafka.EventOrderCancelled:
		return "Your order was cancelled"
	case kafka.EventOrderExpired:
		return "Your reservation expired"
	default:
		return ""
	}
}

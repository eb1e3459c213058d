package events

import (
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated         = "order.created"
	TypeOrderCancelled       = "order.cancelled"
	TypeOrderStatusChanged   = "order.status_changed"
	TypePaymentStatusChanged = "order.payment_status_changed"
	TypeStockReleaseFailed   = "inventory.release_failed"
)

type OrderCreatedEvent struct {
	EventID     string             `json:"event_id"`
	Type        string             `json:"type"`
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Items       []domain.OrderLine `json:"items"`
	Status      string             `json:"status"`
	Timestamp   time.Time          `json:"timestamp"`
	RequestID   string             `json:"request_id,omitempty"`
}

type OrderCancelledEvent struct {
	EventID   string             `json:"event_id"`
	Type      string             `json:"type"`
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	Reason    string             `json:"reason"`
	Restored  []domain.OrderLine `json:"restored"`
	Timestamp time.Time          `json:"timestamp"`
}

type StatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// CompensationEvent records stock that could not be handed back after a
// failed checkout. Consumers must re-apply the release.
type CompensationEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOrderCreated(o *domain.Order, requestID string) OrderCreatedEvent {
	return OrderCreatedEvent{
		EventID:     uuid.New().String(),
		Type:        TypeOrderCreated,
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       o.Items,
		Status:      string(o.Status),
		Timestamp:   time.Now().UTC(),
		RequestID:   requestID,
	}
}

func NewOrderCancelled(o *domain.Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		EventID:   uuid.New().String(),
		Type:      TypeOrderCancelled,
		OrderID:   o.OrderID,
		UserID:    o.UserID,
		Reason:    o.CancelReason,
		Restored:  o.Items,
		Timestamp: time.Now().UTC(),
	}
}

func NewStatusChanged(eventType string, o *domain.Order, from, to string) StatusChangedEvent {
	return StatusChangedEvent{
		EventID:   uuid.New().String(),
		Type:      eventType,
		OrderID:   o.OrderID,
		UserID:    o.UserID,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
	}
}

func NewCompensation(userID, productID string, qty int, reason string) CompensationEvent {
	return CompensationEvent{
		EventID:   uuid.New().String(),
		Type:      TypeStockReleaseFailed,
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

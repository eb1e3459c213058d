package service

import (
	"context"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
)

type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// Ledger is the authority over product quantities. Reserve must decrement
// only when the full quantity is available, atomically with the check.
type Ledger interface {
	Reserve(ctx context.Context, productID string, qty int) (domain.Reservation, error)
	Release(ctx context.Context, productID string, qty int) error
}

// Inventory is what the storage backends implement.
type Inventory interface {
	ProductReader
	Ledger
}

type CartRepository interface {
	// GetCart returns an empty cart with Version 0 for a user that never
	// stored one.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// SaveCart writes the cart if the stored version still equals
	// cart.Version and bumps cart.Version. A mismatch is
	// domain.ErrConcurrentUpdate.
	SaveCart(ctx context.Context, cart *domain.Cart) error
	ClearCart(ctx context.Context, userID string) error
}

type OrderRepository interface {
	// PlaceOrder persists a new order and empties the owner's cart in one
	// step, conditional on the cart still being at cartVersion. A duplicate
	// order code is domain.ErrOrderCodeTaken; a moved cart is
	// domain.ErrConcurrentUpdate.
	PlaceOrder(ctx context.Context, order *domain.Order, cartVersion int64) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	// ListOrdersByUser and ListOrders return newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, from domain.OrderStatus, change domain.StatusChange, at time.Time) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, from, to domain.PaymentStatus, at time.Time) (*domain.Order, error)
	// CancelOrder marks the order cancelled and returns every line's
	// quantity to inventory as one atomic step. Nothing changes when the
	// order is no longer in status from or a product cannot be restored.
	CancelOrder(ctx context.Context, orderID string, from domain.OrderStatus, reason string, at time.Time) (*domain.Order, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
	PublishOrderCancelled(ctx context.Context, event events.OrderCancelledEvent) error
	PublishStatusChanged(ctx context.Context, event events.StatusChangedEvent) error
}

type CompensationPublisher interface {
	PublishCompensation(ctx context.Context, event events.CompensationEvent) error
}

// IdempotencyStore remembers which order a client checkout key produced.
type IdempotencyStore interface {
	// Begin claims key. When the key already completed it returns the
	// order id it produced and acquired=false.
	Begin(ctx context.Context, key string) (orderID string, acquired bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Abandon(ctx context.Context, key string) error
}

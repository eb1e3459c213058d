package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures published events.
type recorder struct {
	mu            sync.Mutex
	created       []events.OrderCreatedEvent
	cancelled     []events.OrderCancelledEvent
	changed       []events.StatusChangedEvent
	compensations []events.CompensationEvent
}

func (r *recorder) PublishOrderCreated(_ context.Context, e events.OrderCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e)
	return nil
}

func (r *recorder) PublishOrderCancelled(_ context.Context, e events.OrderCancelledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, e)
	return nil
}

func (r *recorder) PublishStatusChanged(_ context.Context, e events.StatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, e)
	return nil
}

func (r *recorder) PublishCompensation(_ context.Context, e events.CompensationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations = append(r.compensations, e)
	return nil
}

type fixture struct {
	store    *memory.Store
	events   *recorder
	carts    *CartService
	checkout *CheckoutService
	orders   *OrderService
}

func newFixture(t *testing.T, opts ...CheckoutOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	rec := &recorder{}
	logger := zap.NewNop()
	return &fixture{
		store:    store,
		events:   rec,
		carts:    NewCartService(store, store, logger),
		checkout: NewCheckoutService(store, store, store, rec, rec, logger, opts...),
		orders:   NewOrderService(store, rec, logger, 5),
	}
}

func (f *fixture) product(t *testing.T, id string, stock int, price string) {
	t.Helper()
	require.NoError(t, f.store.PutProduct(context.Background(), &domain.Product{
		ProductID: id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Quantity:  stock,
	}))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) add(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName: "Asha Verma",
		Phone:    "9876543210",
		Address:  "123 Main Street",
		City:     "Ahmedabad",
		State:    "Gujarat",
		Pincode:  "380001",
	}
}

func checkoutReq() CheckoutRequest {
	return CheckoutRequest{ShippingAddress: address()}
}

var (
	user  = domain.Actor{UserID: "u1", Role: domain.RoleUser}
	other = domain.Actor{UserID: "u2", Role: domain.RoleUser}
	admin = domain.Actor{UserID: "admin", Role: domain.RoleAdmin}
)

func zapNop() *zap.Logger { return zap.NewNop() }

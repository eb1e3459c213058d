package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seed(t require.TestingT, s *Store, id string, qty int, price string) {
	require.NoError(t, s.PutProduct(context.Background(), &domain.Product{
		ProductID: id,
		Name:      "product " + id,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
	}))
}

func TestReserve_SnapshotsPriceAndDecrements(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", 5, "9.99")

	r, err := s.Reserve(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, "product p1", r.ProductName)
	assert.Equal(t, "9.99", r.UnitPrice.String())

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)
}

func TestReserve_FailuresLeaveQuantityUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", 1, "1")

	_, err := s.Reserve(ctx, "p1", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = s.Reserve(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = s.Reserve(ctx, "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 1, p.Quantity)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", 10, "1")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reserve(ctx, "p1", 3); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 1, p.Quantity)
}

func TestLedger_QuantityNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := NewStore()
		initial := rapid.IntRange(0, 20).Draw(t, "initial")
		seed(t, s, "p", initial, "1")

		held := 0
		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			qty := rapid.IntRange(1, 8).Draw(t, "qty")
			if rapid.Bool().Draw(t, "reserve") {
				if _, err := s.Reserve(ctx, "p", qty); err == nil {
					held += qty
				}
			} else if held >= qty {
				if err := s.Release(ctx, "p", qty); err != nil {
					t.Fatalf("release: %v", err)
				}
				held -= qty
			}

			p, _ := s.GetProduct(ctx, "p")
			if p.Quantity < 0 {
				t.Fatalf("quantity went negative: %d", p.Quantity)
			}
			if p.Quantity+held != initial {
				t.Fatalf("stock not conserved: available=%d held=%d initial=%d", p.Quantity, held, initial)
			}
		}
	})
}

func TestSaveCart_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a, _ := s.GetCart(ctx, "u1")
	b, _ := s.GetCart(ctx, "u1")
	a.Lines = append(a.Lines, domain.CartLine{ProductID: "p1", Quantity: 1})
	require.NoError(t, s.SaveCart(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.Lines = append(b.Lines, domain.CartLine{ProductID: "p2", Quantity: 1})
	assert.ErrorIs(t, s.SaveCart(ctx, b), domain.ErrConcurrentUpdate)
}

func TestPlaceOrder_RejectsDuplicateCodeAndMovedCart(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	cart, _ := s.GetCart(ctx, "u1")
	cart.Lines = []domain.CartLine{{ProductID: "p1", Quantity: 1}}
	require.NoError(t, s.SaveCart(ctx, cart))

	order := &domain.Order{OrderID: "ORD-1", UserID: "u1", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.PlaceOrder(ctx, order, 0), domain.ErrConcurrentUpdate)
	require.NoError(t, s.PlaceOrder(ctx, order, cart.Version))

	after, _ := s.GetCart(ctx, "u1")
	assert.True(t, after.Empty())
	assert.ErrorIs(t, s.PlaceOrder(ctx, order, after.Version), domain.ErrOrderCodeTaken)
}

func TestCancelOrder_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", 0, "1")
	seed(t, s, "p2", 0, "1")
	order := &domain.Order{
		OrderID: "ORD-1",
		UserID:  "u1",
		Status:  domain.OrderStatusPending,
		Items: []domain.OrderLine{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
	}
	require.NoError(t, s.PlaceOrder(ctx, order, 0))
	require.NoError(t, s.DeleteProduct(ctx, "p2"))

	_, err := s.CancelOrder(ctx, "ORD-1", domain.OrderStatusPending, "x", time.Now())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	p1, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 0, p1.Quantity)
	got, _ := s.GetOrder(ctx, "ORD-1")
	assert.Equal(t, domain.OrderStatusPending, got.Status)

	seed(t, s, "p2", 0, "1")
	cancelled, err := s.CancelOrder(ctx, "ORD-1", domain.OrderStatusPending, "changed mind", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	p1, _ = s.GetProduct(ctx, "p1")
	p2, _ := s.GetProduct(ctx, "p2")
	assert.Equal(t, 2, p1.Quantity)
	assert.Equal(t, 3, p2.Quantity)

	_, err = s.CancelOrder(ctx, "ORD-1", domain.OrderStatusPending, "again", time.Now())
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestListOrders_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.PlaceOrder(ctx, &domain.Order{
			OrderID:   id,
			UserID:    "u" + id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}, 0))
	}
	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].OrderID)

	mine, err := s.ListOrdersByUser(ctx, "ub")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "b", mine[0].OrderID)
}

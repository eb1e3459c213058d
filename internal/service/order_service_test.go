package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placed checks out a single-line cart for userID and returns the order.
func placed(t *testing.T, f *fixture, userID, productID string, qty int) *domain.Order {
	t.Helper()
	f.add(t, userID, productID, qty)
	order, err := f.checkout.Checkout(context.Background(), userID, checkoutReq())
	require.NoError(t, err)
	return order
}

func advance(t *testing.T, f *fixture, orderID string, to ...domain.OrderStatus) {
	t.Helper()
	for _, s := range to {
		_, err := f.orders.UpdateStatus(context.Background(), admin, orderID, domain.StatusChange{Status: s})
		require.NoError(t, err)
	}
}

func TestCancel_RestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "10.50")
	f.product(t, "B", 2, "3.25")
	f.add(t, "u1", "A", 3)
	f.add(t, "u1", "B", 2)
	order, err := f.checkout.Checkout(ctx, "u1", checkoutReq())
	require.NoError(t, err)

	cancelled, err := f.orders.Cancel(ctx, user, order.OrderID, "changed mind")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed mind", cancelled.CancelReason)
	assert.Equal(t, 5, f.stock(t, "A"))
	assert.Equal(t, 2, f.stock(t, "B"))
	require.Len(t, f.events.cancelled, 1)
	assert.Len(t, f.events.cancelled[0].Restored, 2)

	_, err = f.orders.Cancel(ctx, user, order.OrderID, "")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, 5, f.stock(t, "A"), "a second cancel must not restore twice")
}

func TestCancel_DefaultReasonAndConfirmedOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 2)
	advance(t, f, order.OrderID, domain.OrderStatusConfirmed)

	cancelled, err := f.orders.Cancel(ctx, user, order.OrderID, "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserCancelReason, cancelled.CancelReason)
	assert.Equal(t, 5, f.stock(t, "A"))
}

func TestCancel_RefusedOnceFulfilmentStarted(t *testing.T) {
	for _, path := range [][]domain.OrderStatus{
		{domain.OrderStatusConfirmed, domain.OrderStatusProcessing},
		{domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped},
		{domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered},
	} {
		last := path[len(path)-1]
		t.Run(string(last), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.product(t, "A", 5, "1")
			order := placed(t, f, "u1", "A", 2)
			advance(t, f, order.OrderID, path...)

			_, err := f.orders.Cancel(ctx, user, order.OrderID, "changed mind")
			assert.ErrorIs(t, err, domain.ErrIllegalTransition)
			assert.Equal(t, 3, f.stock(t, "A"))

			got, err := f.orders.GetOrder(ctx, user, order.OrderID)
			require.NoError(t, err)
			assert.Equal(t, last, got.Status)
		})
	}
}

func TestCancel_OnlyOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)

	_, err := f.orders.Cancel(ctx, other, order.OrderID, "")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.orders.Cancel(ctx, user, "ORD-missing", "")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, 4, f.stock(t, "A"))
}

func TestCancel_MissingProductLeavesOrderUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)
	require.NoError(t, f.store.DeleteProduct(ctx, "A"))

	_, err := f.orders.Cancel(ctx, user, order.OrderID, "")
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	got, err := f.store.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestUpdateStatus_StateMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)

	_, err := f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusShipped})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition, "no skipping ahead")

	_, err = f.orders.UpdateStatus(ctx, user, order.OrderID, domain.StatusChange{Status: domain.OrderStatusConfirmed})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	advance(t, f, order.OrderID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped)

	deliveredAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{
		Status:         domain.OrderStatusShipped,
		TrackingNumber: " TRK-1 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRK-1", got.TrackingNumber)

	got, err = f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{
		Status:       domain.OrderStatusDelivered,
		DeliveryDate: &deliveredAt,
	})
	require.NoError(t, err)
	require.NotNil(t, got.DeliveryDate)
	assert.True(t, deliveredAt.Equal(*got.DeliveryDate))

	_, err = f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusPending})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	_, err = f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusDelivered})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition, "same status without details")
	_, err = f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, 4, f.stock(t, "A"))

	var types []string
	for _, e := range f.events.changed {
		types = append(types, e.To)
	}
	assert.Equal(t, []string{"confirmed", "processing", "shipped", "delivered"}, types)
}

func TestUpdateStatus_AdminCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 3)

	got, err := f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminCancelReason, got.CancelReason)
	assert.Equal(t, 5, f.stock(t, "A"))
	assert.Len(t, f.events.cancelled, 1)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)

	_, err := f.orders.UpdatePaymentStatus(ctx, admin, order.OrderID, domain.PaymentStatusRefunded)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	got, err := f.orders.UpdatePaymentStatus(ctx, admin, order.OrderID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, got.Status)

	got, err = f.orders.UpdatePaymentStatus(ctx, admin, order.OrderID, domain.PaymentStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, 4, f.stock(t, "A"))

	_, err = f.orders.UpdatePaymentStatus(ctx, user, order.OrderID, domain.PaymentStatusPaid)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.orders.UpdatePaymentStatus(ctx, admin, order.OrderID, "bounced")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.Len(t, f.events.changed, 2)
	assert.Equal(t, events.TypePaymentStatusChanged, f.events.changed[1].Type)
}

func TestGetOrder_Access(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)

	_, err := f.orders.GetOrder(ctx, user, order.OrderID)
	assert.NoError(t, err)
	_, err = f.orders.GetOrder(ctx, admin, order.OrderID)
	assert.NoError(t, err)
	_, err = f.orders.GetOrder(ctx, other, order.OrderID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.orders.GetOrder(ctx, user, "ORD-0-NOPE")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 100, "2")
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.checkout = NewCheckoutService(f.store, f.store, f.store, f.events, f.events, zapNop(),
		WithCheckoutClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}))

	var mine []*domain.Order
	for i := 0; i < 12; i++ {
		mine = append(mine, placed(t, f, "u1", "A", 1))
	}
	theirs := placed(t, f, "u2", "A", 5)
	_, err := f.orders.Cancel(ctx, user, mine[0].OrderID, "")
	require.NoError(t, err)

	page, err := f.orders.ListMine(ctx, user, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 10)
	assert.Equal(t, domain.Pagination{Total: 12, Page: 1, Pages: 2}, page.Pagination)
	assert.Equal(t, mine[11].OrderID, page.Orders[0].OrderID, "newest first")

	page, err = f.orders.ListMine(ctx, user, domain.OrderFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)

	page, err = f.orders.ListMine(ctx, user, domain.OrderFilter{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, mine[0].OrderID, page.Orders[0].OrderID)

	_, err = f.orders.ListMine(ctx, user, domain.OrderFilter{Limit: 500})
	assert.ErrorIs(t, err, domain.ErrInvalidPage)
	_, err = f.orders.ListMine(ctx, user, domain.OrderFilter{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.orders.ListAll(ctx, user, domain.OrderFilter{})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	all, err := f.orders.ListAll(ctx, admin, domain.OrderFilter{Search: theirs.OrderID[len(theirs.OrderID)-8:]})
	require.NoError(t, err)
	require.Len(t, all.Orders, 1)
	assert.Equal(t, theirs.OrderID, all.Orders[0].OrderID)
	assert.Equal(t, []domain.StatusStat{
		{Status: domain.OrderStatusPending, Count: 12, Revenue: all.Statistics[0].Revenue},
		{Status: domain.OrderStatusCancelled, Count: 1, Revenue: all.Statistics[1].Revenue},
	}, all.Statistics)
	assert.Equal(t, "32", all.Statistics[0].Revenue.String())

	stats, err := f.orders.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 13, stats.TotalOrders)
	assert.Equal(t, "32", stats.TotalRevenue.String(), "cancelled orders carry no revenue")
	require.Len(t, stats.RecentOrders, 5)
	assert.Equal(t, theirs.OrderID, stats.RecentOrders[0].OrderID)

	_, err = f.orders.Stats(ctx, user)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestUpdateStatus_ConcurrentAdminsOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	order := placed(t, f, "u1", "A", 1)

	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := f.orders.UpdateStatus(ctx, admin, order.OrderID, domain.StatusChange{Status: domain.OrderStatusConfirmed})
			results <- err
		}()
	}
	var ok int
	for i := 0; i < 4; i++ {
		if err := <-results; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrIllegalTransition, fmt.Sprint(err))
		}
	}
	assert.Equal(t, 1, ok)
}

func TestListMine_PageFarBeyondTheEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "A", 5, "1")
	placed(t, f, "u1", "A", 1)

	page, err := f.orders.ListMine(ctx, user, domain.OrderFilter{Page: math.MaxInt / 50, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, 1, page.Pagination.Total)
}

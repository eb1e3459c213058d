package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
	"go.uber.org/zap"
)

const (
	DefaultUserCancelReason  = "Cancelled by user"
	DefaultAdminCancelReason = "Cancelled by admin"

	defaultUserPageSize  = 10
	defaultAdminPageSize = 20
	maxPageSize          = 100

	// transitionAttempts bounds re-evaluation when the stored status moved
	// between reading the order and the conditional write.
	transitionAttempts = 3
)

// OrderService governs orders after checkout: reads, the fulfilment and
// payment state machines, and cancellation with stock restoration.
type OrderService struct {
	orders    OrderRepository
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	recent    int
}

func NewOrderService(orders OrderRepository, publisher EventPublisher, logger *zap.Logger, recentOrders int) *OrderService {
	return &OrderService{
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		recent:    recentOrders,
	}
}

type AdminOrderPage struct {
	domain.OrderPage
	Statistics []domain.StatusStat `json:"statistics"`
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(order.UserID) {
		return nil, domain.ErrAccessDenied
	}
	return order, nil
}

// ListMine pages through the caller's own orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, actor domain.Actor, filter domain.OrderFilter) (*domain.OrderPage, error) {
	filter, err := normalizeFilter(filter, defaultUserPageSize)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrdersByUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, domain.Internal("list orders", err)
	}
	page := domain.Paginate(filterOrders(orders, filter), filter.Page, filter.Limit)
	return &page, nil
}

// ListAll is the administrator view: every order, optionally narrowed by
// status and free-text search, plus a per-status breakdown of all orders.
func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor, filter domain.OrderFilter) (*AdminOrderPage, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	filter, err := normalizeFilter(filter, defaultAdminPageSize)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, domain.Internal("list orders", err)
	}
	return &AdminOrderPage{
		OrderPage:  domain.Paginate(filterOrders(orders, filter), filter.Page, filter.Limit),
		Statistics: domain.ComputeStats(orders, 0).StatusBreakdown,
	}, nil
}

func (s *OrderService) Stats(ctx context.Context, actor domain.Actor) (*domain.OrderStats, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, domain.Internal("list orders", err)
	}
	stats := domain.ComputeStats(orders, s.recent)
	return &stats, nil
}

// Cancel is the owner's cancellation. Administrators cancel through
// UpdateStatus.
func (s *OrderService) Cancel(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		return nil, domain.ErrAccessDenied
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultUserCancelReason
	}
	return s.cancel(ctx, order, reason)
}

func (s *OrderService) cancel(ctx context.Context, order *domain.Order, reason string) (*domain.Order, error) {
	for attempt := 1; ; attempt++ {
		if !order.Status.CanTransition(domain.OrderStatusCancelled) {
			return nil, domain.IllegalTransition(string(order.Status), string(domain.OrderStatusCancelled))
		}
		updated, err := s.orders.CancelOrder(ctx, order.OrderID, order.Status, reason, s.now().UTC())
		if err == nil {
			s.logger.Info("Order cancelled",
				zap.String("order_id", updated.OrderID),
				zap.String("from", string(order.Status)),
				zap.String("reason", reason))
			if perr := s.publisher.PublishOrderCancelled(ctx, events.NewOrderCancelled(updated)); perr != nil {
				s.logger.Error("Failed to publish event", zap.String("order_id", updated.OrderID), zap.Error(perr))
			}
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			s.logger.Error("Failed to cancel order",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
			if errors.Is(err, domain.ErrOrderNotFound) {
				return nil, err
			}
			return nil, domain.Internal("cancel order", err)
		}
		if attempt == transitionAttempts {
			return nil, domain.ErrConcurrentUpdate
		}
		if order, err = s.load(ctx, order.OrderID); err != nil {
			return nil, err
		}
	}
}

// UpdateStatus moves an order along the fulfilment state machine. A move to
// cancelled restores stock like a user cancellation. Repeating the current
// status is accepted only to attach a tracking number or delivery date.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderID string, change domain.StatusChange) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	if !change.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	change.TrackingNumber = strings.TrimSpace(change.TrackingNumber)

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if change.Status == domain.OrderStatusCancelled {
		return s.cancel(ctx, order, DefaultAdminCancelReason)
	}

	for attempt := 1; ; attempt++ {
		from := order.Status
		detailsOnly := from == change.Status && (change.TrackingNumber != "" || change.DeliveryDate != nil)
		if !detailsOnly && !from.CanTransition(change.Status) {
			return nil, domain.IllegalTransition(string(from), string(change.Status))
		}

		updated, err := s.orders.UpdateStatus(ctx, orderID, from, change, s.now().UTC())
		if err == nil {
			s.logger.Info("Order status updated",
				zap.String("order_id", orderID),
				zap.String("from", string(from)),
				zap.String("to", string(change.Status)))
			if from != change.Status {
				ev := events.NewStatusChanged(events.TypeOrderStatusChanged, updated, string(from), string(change.Status))
				if perr := s.publisher.PublishStatusChanged(ctx, ev); perr != nil {
					s.logger.Error("Failed to publish event", zap.String("order_id", orderID), zap.Error(perr))
				}
			}
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return nil, err
			}
			s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
			return nil, domain.Internal("update order status", err)
		}
		if attempt == transitionAttempts {
			return nil, domain.ErrConcurrentUpdate
		}
		if order, err = s.load(ctx, orderID); err != nil {
			return nil, err
		}
	}
}

// UpdatePaymentStatus records a payment outcome. It never touches stock.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, orderID string, to domain.PaymentStatus) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	for attempt := 1; ; attempt++ {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		from := order.PaymentStatus
		if !from.CanTransition(to) {
			return nil, domain.IllegalTransition(string(from), string(to))
		}

		updated, err := s.orders.UpdatePaymentStatus(ctx, orderID, from, to, s.now().UTC())
		if err == nil {
			s.logger.Info("Payment status updated",
				zap.String("order_id", orderID),
				zap.String("from", string(from)),
				zap.String("to", string(to)))
			ev := events.NewStatusChanged(events.TypePaymentStatusChanged, updated, string(from), string(to))
			if perr := s.publisher.PublishStatusChanged(ctx, ev); perr != nil {
				s.logger.Error("Failed to publish event", zap.String("order_id", orderID), zap.Error(perr))
			}
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return nil, err
			}
			s.logger.Error("Failed to update payment status", zap.String("order_id", orderID), zap.Error(err))
			return nil, domain.Internal("update payment status", err)
		}
		if attempt == transitionAttempts {
			return nil, domain.ErrConcurrentUpdate
		}
	}
}

func (s *OrderService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load order", zap.String("order_id", orderID), zap.Error(err))
		return nil, domain.Internal("load order", err)
	}
	return order, nil
}

func normalizeFilter(f domain.OrderFilter, defaultLimit int) (domain.OrderFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, domain.ErrInvalidStatus
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = defaultLimit
	}
	if f.Page < 1 || f.Limit < 1 || f.Limit > maxPageSize {
		return f, domain.ErrInvalidPage
	}
	return f, nil
}

func filterOrders(orders []domain.Order, f domain.OrderFilter) []domain.Order {
	out := orders[:0:0]
	for i := range orders {
		if f.Matches(&orders[i]) {
			out = append(out, orders[i])
		}
	}
	return out
}

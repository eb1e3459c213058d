package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/idempotency"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderCodeAttempts = 5

type CheckoutRequest struct {
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	Notes           string
	IdempotencyKey  string
	RequestID       string
}

// CheckoutService turns a cart into an order. Every line is validated
// against current stock before anything is reserved; once reservation starts
// it either completes for all lines or every reservation made so far is
// released again.
type CheckoutService struct {
	carts        CartRepository
	inventory    Inventory
	orders       OrderRepository
	publisher    EventPublisher
	compensation CompensationPublisher
	idempotency  IdempotencyStore
	logger       *zap.Logger

	now            func() time.Time
	newCode        func(time.Time) string
	releaseRetries int
	releaseBackoff time.Duration
}

type CheckoutOption func(*CheckoutService)

func WithIdempotency(store IdempotencyStore) CheckoutOption {
	return func(s *CheckoutService) { s.idempotency = store }
}

func WithOrderCodes(gen func(time.Time) string) CheckoutOption {
	return func(s *CheckoutService) { s.newCode = gen }
}

// WithReleasePolicy sets how often a rollback release is retried and the
// initial backoff, which doubles per attempt.
func WithReleasePolicy(retries int, backoff time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		s.releaseRetries = retries
		s.releaseBackoff = backoff
	}
}

func WithCheckoutClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func NewCheckoutService(carts CartRepository, inventory Inventory, orders OrderRepository, publisher EventPublisher, compensation CompensationPublisher, logger *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		carts:          carts,
		inventory:      inventory,
		orders:         orders,
		publisher:      publisher,
		compensation:   compensation,
		logger:         logger,
		now:            time.Now,
		newCode:        NewOrderCode,
		releaseRetries: 3,
		releaseBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOrderCode builds a human-readable code from the creation time and a
// random suffix. Uniqueness is enforced by the store, not by this function.
func NewOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func (s *CheckoutService) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*domain.Order, error) {
	addr := req.ShippingAddress.Normalize()
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" || s.idempotency == nil {
		return s.checkout(ctx, userID, addr, method, req)
	}

	key := userID + ":" + req.IdempotencyKey
	orderID, acquired, err := s.idempotency.Begin(ctx, key)
	if errors.Is(err, idempotency.ErrInFlight) {
		return nil, domain.ErrCheckoutInProgress
	}
	if err != nil {
		s.logger.Error("Failed to claim idempotency key", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.Internal("claim idempotency key", err)
	}
	if !acquired {
		s.logger.Info("Replaying checkout",
			zap.String("user_id", userID),
			zap.String("order_id", orderID))
		return s.orders.GetOrder(ctx, orderID)
	}

	order, err := s.checkout(ctx, userID, addr, method, req)
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if aerr := s.idempotency.Abandon(bg, key); aerr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("user_id", userID), zap.Error(aerr))
		}
		return nil, err
	}
	if cerr := s.idempotency.Complete(bg, key, order.OrderID); cerr != nil {
		s.logger.Warn("Failed to record idempotency key",
			zap.String("user_id", userID),
			zap.String("order_id", order.OrderID),
			zap.Error(cerr))
	}
	return order, nil
}

func (s *CheckoutService) checkout(ctx context.Context, userID string, addr domain.ShippingAddress, method domain.PaymentMethod, req CheckoutRequest) (*domain.Order, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.Internal("load cart", err)
	}
	if cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	if err := s.validate(ctx, cart); err != nil {
		return nil, err
	}

	reserved, err := s.reserve(ctx, userID, cart)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		UserID:          userID,
		Items:           make([]domain.OrderLine, 0, len(reserved)),
		TotalAmount:     decimal.Zero,
		ShippingAddress: addr,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   method,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, r := range reserved {
		line := domain.NewOrderLine(r)
		order.Items = append(order.Items, line)
		order.TotalAmount = order.TotalAmount.Add(line.ItemTotal)
	}

	if err := s.place(ctx, order, cart.Version); err != nil {
		if rerr := s.rollback(ctx, userID, reserved); rerr != nil {
			return nil, domain.Internal("roll back reservations", rerr)
		}
		return nil, err
	}

	if err := s.publisher.PublishOrderCreated(ctx, events.NewOrderCreated(order, req.RequestID)); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}

	s.logger.Info("Order created successfully",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Items)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	return order, nil
}

// validate checks every line against current stock without side effects.
func (s *CheckoutService) validate(ctx context.Context, cart *domain.Cart) error {
	for _, line := range cart.Lines {
		if line.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}
		p, err := s.inventory.GetProduct(ctx, line.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return productUnavailable(line.ProductID)
		}
		if err != nil {
			s.logger.Error("Failed to load product",
				zap.String("product_id", line.ProductID),
				zap.Error(err))
			return domain.Internal("load product", err)
		}
		if line.Quantity > p.Quantity {
			return domain.InsufficientStock(p.ProductID, p.Name)
		}
	}
	return nil
}

// reserve takes stock for every line. On the first failure everything
// reserved so far is released before the error is returned.
func (s *CheckoutService) reserve(ctx context.Context, userID string, cart *domain.Cart) ([]domain.Reservation, error) {
	reserved := make([]domain.Reservation, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		r, err := s.inventory.Reserve(ctx, line.ProductID, line.Quantity)
		if err == nil {
			reserved = append(reserved, r)
			continue
		}

		s.logger.Warn("Reservation failed, rolling back",
			zap.String("user_id", userID),
			zap.String("product_id", line.ProductID),
			zap.Int("reserved_lines", len(reserved)),
			zap.Error(err))
		if rerr := s.rollback(ctx, userID, reserved); rerr != nil {
			return nil, domain.Internal("roll back reservations", rerr)
		}
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			return nil, err
		case errors.Is(err, domain.ErrProductNotFound):
			return nil, productUnavailable(line.ProductID)
		default:
			return nil, domain.Internal("reserve stock", err)
		}
	}
	return reserved, nil
}

// place persists the order, drawing a fresh code whenever the store reports
// a collision.
func (s *CheckoutService) place(ctx context.Context, order *domain.Order, cartVersion int64) error {
	var err error
	for attempt := 1; attempt <= orderCodeAttempts; attempt++ {
		order.OrderID = s.newCode(order.CreatedAt)
		err = s.orders.PlaceOrder(ctx, order, cartVersion)
		if !errors.Is(err, domain.ErrOrderCodeTaken) {
			break
		}
		s.logger.Warn("Order code collision, regenerating",
			zap.String("order_id", order.OrderID),
			zap.Int("attempt", attempt))
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderCodeTaken), errors.Is(err, domain.ErrConcurrentUpdate):
		return err
	default:
		s.logger.Error("Failed to save order",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
		return domain.Internal("save order", err)
	}
}

// rollback releases reservations. It runs detached from the request's
// cancellation: a client hanging up must not leave stock held.
func (s *CheckoutService) rollback(ctx context.Context, userID string, reserved []domain.Reservation) error {
	ctx = context.WithoutCancel(ctx)
	var failed error
	for _, r := range reserved {
		err := s.release(ctx, r)
		if err == nil {
			continue
		}
		s.logger.Error("Stock release failed, stock drift recorded",
			zap.String("user_id", userID),
			zap.String("product_id", r.ProductID),
			zap.Int("quantity", r.Quantity),
			zap.Error(err))
		ev := events.NewCompensation(userID, r.ProductID, r.Quantity, err.Error())
		if perr := s.compensation.PublishCompensation(ctx, ev); perr != nil {
			s.logger.Error("Failed to publish compensation event",
				zap.String("product_id", r.ProductID),
				zap.Error(perr))
		}
		failed = errors.Join(failed, fmt.Errorf("release %s x%d: %w", r.ProductID, r.Quantity, err))
	}
	return failed
}

func (s *CheckoutService) release(ctx context.Context, r domain.Reservation) error {
	backoff := s.releaseBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = s.inventory.Release(ctx, r.ProductID, r.Quantity); err == nil {
			return nil
		}
		if attempt >= s.releaseRetries {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}

func productUnavailable(productID string) error {
	return &domain.Error{
		Kind:      domain.ErrProductUnavailable.Kind,
		Code:      domain.ErrProductUnavailable.Code,
		Message:   domain.ErrProductUnavailable.Message,
		ProductID: productID,
	}
}

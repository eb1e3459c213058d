// Package memory is an in-process storage backend. Every operation runs
// under one mutex, which makes each of them linearizable, including the
// multi-entity ones (PlaceOrder, CancelOrder).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	carts    map[string]*domain.Cart
	orders   map[string]*domain.Order
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]*domain.Product),
		carts:    make(map[string]*domain.Cart),
		orders:   make(map[string]*domain.Order),
		now:      time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// PutProduct creates or replaces a catalog entry.
func (s *Store) PutProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	now := s.now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.products[p.ProductID] = &cp
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) Reserve(_ context.Context, productID string, qty int) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.Reservation{}, domain.ErrProductNotFound
	}
	if p.Quantity < qty {
		return domain.Reservation{}, domain.InsufficientStock(p.ProductID, p.Name)
	}
	p.Quantity -= qty
	p.UpdatedAt = s.now().UTC()
	return domain.Reservation{
		ProductID:   p.ProductID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    qty,
	}, nil
}

func (s *Store) Release(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Quantity += qty
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID}, nil
	}
	return c.Clone(), nil
}

func (s *Store) SaveCart(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cartVersion(cart.UserID) != cart.Version {
		return domain.ErrConcurrentUpdate
	}
	cart.Version++
	cart.UpdatedAt = s.now().UTC()
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCartLocked(userID)
	return nil
}

func (s *Store) cartVersion(userID string) int64 {
	if c, ok := s.carts[userID]; ok {
		return c.Version
	}
	return 0
}

func (s *Store) clearCartLocked(userID string) {
	s.carts[userID] = &domain.Cart{
		UserID:    userID,
		Version:   s.cartVersion(userID) + 1,
		UpdatedAt: s.now().UTC(),
	}
}

func (s *Store) PlaceOrder(_ context.Context, order *domain.Order, cartVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.OrderID]; exists {
		return domain.ErrOrderCodeTaken
	}
	if s.cartVersion(order.UserID) != cartVersion {
		return domain.ErrConcurrentUpdate
	}
	s.orders[order.OrderID] = cloneOrder(order)
	s.clearCartLocked(order.UserID)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return s.list(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) ListOrders(context.Context) ([]domain.Order, error) {
	return s.list(func(*domain.Order) bool { return true }), nil
}

func (s *Store) list(keep func(*domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) UpdateStatus(_ context.Context, orderID string, from domain.OrderStatus, change domain.StatusChange, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, domain.ErrConcurrentUpdate
	}
	o.Status = change.Status
	if change.TrackingNumber != "" {
		o.TrackingNumber = change.TrackingNumber
	}
	if change.DeliveryDate != nil {
		d := *change.DeliveryDate
		o.DeliveryDate = &d
	}
	o.UpdatedAt = at
	return cloneOrder(o), nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, orderID string, from, to domain.PaymentStatus, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.PaymentStatus != from {
		return nil, domain.ErrConcurrentUpdate
	}
	o.PaymentStatus = to
	o.UpdatedAt = at
	return cloneOrder(o), nil
}

func (s *Store) CancelOrder(_ context.Context, orderID string, from domain.OrderStatus, reason string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, domain.ErrConcurrentUpdate
	}
	// All products must resolve before any quantity moves.
	for _, line := range o.Items {
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, domain.ErrProductNotFound
		}
	}
	for _, line := range o.Items {
		p := s.products[line.ProductID]
		p.Quantity += line.Quantity
		p.UpdatedAt = at
	}
	o.Status = domain.OrderStatusCancelled
	o.CancelReason = reason
	o.UpdatedAt = at
	return cloneOrder(o), nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderLine(nil), o.Items...)
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		cp.DeliveryDate = &d
	}
	return &cp
}

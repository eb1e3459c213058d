package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// cartSaveAttempts bounds optimistic retries when two requests of the same
// user race on the cart document.
const cartSaveAttempts = 3

// CartService keeps each user's pending selections. Its stock checks are
// advisory: they read the product but never touch the ledger, and checkout
// verifies again.
type CartService struct {
	carts    CartRepository
	products ProductReader
	logger   *zap.Logger
}

func NewCartService(carts CartRepository, products ProductReader, logger *zap.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

func (s *CartService) Add(ctx context.Context, userID, productID string, qty int) (*domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, userID, func(cart *domain.Cart) error {
		if i := cart.Find(productID); i >= 0 {
			if qty > product.Quantity-cart.Lines[i].Quantity {
				return domain.InsufficientStock(product.ProductID, product.Name)
			}
			cart.Lines[i].Quantity += qty
			return nil
		}
		if qty > product.Quantity {
			return domain.InsufficientStock(product.ProductID, product.Name)
		}
		if len(cart.Lines) >= domain.MaxCartLines {
			return domain.ErrCartFull
		}
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: productID, Quantity: qty})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

// Update sets a line's quantity exactly; zero removes it.
func (s *CartService) Update(ctx context.Context, userID, productID string, qty int) (*domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || qty < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return s.Remove(ctx, userID, productID)
	}

	product, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > product.Quantity {
		return nil, domain.InsufficientStock(product.ProductID, product.Name)
	}

	err = s.mutate(ctx, userID, func(cart *domain.Cart) error {
		i := cart.Find(productID)
		if i < 0 {
			return domain.ErrLineNotFound
		}
		cart.Lines[i].Quantity = qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

func (s *CartService) Remove(ctx context.Context, userID, productID string) (*domain.CartView, error) {
	err := s.mutate(ctx, userID, func(cart *domain.Cart) error {
		if cart.Find(productID) < 0 {
			return errUnchanged
		}
		cart.Remove(productID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		return domain.Internal("clear cart", err)
	}
	return nil
}

// View joins the cart with live product data. Lines whose product has been
// removed from the catalog are reported in MissingProducts and left out of
// the total.
func (s *CartService) View(ctx context.Context, userID string) (*domain.CartView, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.Internal("load cart", err)
	}

	view := &domain.CartView{Items: make([]domain.CartItemView, 0, len(cart.Lines)), Total: decimal.Zero}
	for _, line := range cart.Lines {
		p, err := s.products.GetProduct(ctx, line.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			view.MissingProducts = append(view.MissingProducts, line.ProductID)
			continue
		}
		if err != nil {
			s.logger.Error("Failed to load cart product",
				zap.String("user_id", userID),
				zap.String("product_id", line.ProductID),
				zap.Error(err))
			return nil, domain.Internal("load product", err)
		}
		itemTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Items = append(view.Items, domain.CartItemView{
			ProductID:   p.ProductID,
			ProductName: p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Quantity,
			Quantity:    line.Quantity,
			ItemTotal:   itemTotal,
		})
		view.Total = view.Total.Add(itemTotal)
	}
	return view, nil
}

func (s *CartService) lookup(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load product", zap.String("product_id", productID), zap.Error(err))
		return nil, domain.Internal("load product", err)
	}
	return p, nil
}

var errUnchanged = errors.New("cart unchanged")

// mutate applies fn to a fresh copy of the cart and saves it, retrying when
// another request saved in between.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*domain.Cart) error) error {
	for attempt := 1; ; attempt++ {
		cart, err := s.carts.GetCart(ctx, userID)
		if err != nil {
			s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
			return domain.Internal("load cart", err)
		}
		if err := fn(cart); err != nil {
			if errors.Is(err, errUnchanged) {
				return nil
			}
			return err
		}
		err = s.carts.SaveCart(ctx, cart)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			s.logger.Error("Failed to save cart", zap.String("user_id", userID), zap.Error(err))
			return domain.Internal("save cart", err)
		}
		if attempt == cartSaveAttempts {
			return domain.ErrConcurrentUpdate
		}
		s.logger.Debug("Cart changed concurrently, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt))
	}
}

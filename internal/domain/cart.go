package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxCartLines bounds the number of distinct products in a cart. Cancelling
// an order restores every line in a single store transaction, which caps the
// number of lines one order may carry.
const MaxCartLines = 99

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	Version   int64      `json:"-"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) Find(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) Remove(productID string) {
	lines := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}
	c.Lines = lines
}

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

// Clone returns a copy whose line slice does not alias c.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = append([]CartLine(nil), c.Lines...)
	return &cp
}

// CartItemView is a cart line joined with the live product.
type CartItemView struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Quantity    int             `json:"quantity"`
	ItemTotal   decimal.Decimal `json:"item_total"`
}

type CartView struct {
	Items []CartItemView `json:"items"`
	Total decimal.Decimal `json:"total"`
	// MissingProducts lists cart lines whose product no longer exists. They
	// are excluded from Total; checkout refuses the cart while any remain.
	MissingProducts []string `json:"missing_products,omitempty"`
}

// Package catalog loads products into the inventory at startup. The product
// catalog is owned elsewhere; this only lets a fresh environment start with
// something to sell.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type ProductWriter interface {
	PutProduct(ctx context.Context, p *domain.Product) error
}

type seedFile struct {
	Products []productSeed `yaml:"products"`
}

type productSeed struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Price       string `yaml:"price"`
	Quantity    int    `yaml:"quantity"`
	CreatedBy   string `yaml:"created_by"`
}

// Parse decodes a seed document. Prices are strings so they never pass
// through a float.
func Parse(data []byte) ([]domain.Product, error) {
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	seen := make(map[string]bool, len(f.Products))
	products := make([]domain.Product, 0, len(f.Products))
	for i, s := range f.Products {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("product %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("product %s: duplicate id", id)
		}
		seen[id] = true
		price, err := decimal.NewFromString(strings.TrimSpace(s.Price))
		if err != nil {
			return nil, fmt.Errorf("product %s: price: %w", id, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("product %s: price must not be negative", id)
		}
		if s.Quantity < 0 {
			return nil, fmt.Errorf("product %s: quantity must not be negative", id)
		}
		products = append(products, domain.Product{
			ProductID:   id,
			Name:        strings.TrimSpace(s.Name),
			Description: s.Description,
			CategoryID:  s.Category,
			Price:       price,
			Quantity:    s.Quantity,
			CreatedBy:   s.CreatedBy,
		})
	}
	return products, nil
}

// Load reads path and writes every product. Existing products with the same
// id are replaced, stock included.
func Load(ctx context.Context, path string, w ProductWriter, logger *zap.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	products, err := Parse(data)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	for i := range products {
		p := &products[i]
		p.CreatedAt, p.UpdatedAt = now, now
		if err := w.PutProduct(ctx, p); err != nil {
			return i, fmt.Errorf("put product %s: %w", p.ProductID, err)
		}
	}
	logger.Info("Catalog seeded", zap.String("file", path), zap.Int("products", len(products)))
	return len(products), nil
}

package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	models "storefront/model"
	"storefront/store"
)

type demoProduct struct {
	name, description, brand, price string
	category                        models.Category
	quantity                        int
}

var demoCatalog = []demoProduct{
	{"CyberDuck Backpack", "Tech-friendly waterproof backpack.", "NeoGear", "69.99", models.CategoryFashion, 10},
	{"Duckboard Keyboard", "Custom RGB mechanical keyboard with ducky keys.", "Quacktronics", "149.99", models.CategoryElectronics, 8},
	{"Duck Plushie", "Cute and terrifying. Comes with fabric knife.", "ChaosToys", "29.99", models.CategoryToysGames, 20},
	{"DuckOS T-Shirt", "Minimalist hacker duck tee in black & neon green.", "NullWear", "24.99", models.CategoryFashion, 50},
	{"Quackbuds Earphones", "Wireless earbuds with noise-cancellation & duck sounds.", "FeatherTech", "89.99", models.CategoryElectronics, 15},
}

// SeedCatalog fills an empty catalog with the demo products and reports how many were
// inserted. It is a no-op once any product exists.
func (s *Service) SeedCatalog(ctx context.Context) (int, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	rows := make([]store.ProductRow, 0, len(demoCatalog))
	for _, d := range demoCatalog {
		rows = append(rows, store.ProductRow{
			Name:        d.name,
			Description: d.description,
			Brand:       d.brand,
			Price:       decimal.RequireFromString(d.price),
			Category:    d.category.String(),
			CreatedAt:   now,
			Available:   true,
			Quantity:    d.quantity,
		})
	}
	n, err := s.store.SeedProducts(ctx, rows)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Printf("service: seeded %d demo products", n)
	}
	return n, nil
}

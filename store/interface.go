package store

import (
	"context"
	"database/sql"
)

// Store is the persistence boundary for the catalog, carts and users.
// Every mutating call is atomic on its own.
type Store interface {
	ListProducts(ctx context.Context) ([]ProductRow, error)
	GetProduct(ctx context.Context, id int64) (ProductRow, error)
	SearchProducts(ctx context.Context, keyword string) ([]ProductRow, error)
	CreateProduct(ctx context.Context, p ProductRow) (ProductRow, error)
	// UpdateProduct overwrites the mutable fields of p.ID. A NULL p.ImageURL keeps the
	// bound image. The image reference held before the update is returned.
	UpdateProduct(ctx context.Context, p ProductRow) (ProductRow, sql.NullString, error)
	// DeleteProduct removes the product and every cart item pointing at it and returns
	// the image reference it held.
	DeleteProduct(ctx context.Context, id int64) (sql.NullString, error)

	GetOrCreateCart(ctx context.Context, username string) (int64, error)
	UpsertCartItem(ctx context.Context, username string, productID int64, qty int) error
	RemoveCartItem(ctx context.Context, username string, productID int64) error
	ClearCart(ctx context.Context, username string) error
	GetCart(ctx context.Context, username string) ([]CartRow, error)

	CreateUser(ctx context.Context, username, passwordHash string) (UserRow, error)
	GetUserByUsername(ctx context.Context, username string) (UserRow, error)

	SeedProducts(ctx context.Context, products []ProductRow) (int, error)

	Close() error
}

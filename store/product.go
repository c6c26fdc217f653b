package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const productColumns = `id, name, description, brand, price, category, created_at, available, quantity, image_url`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE LOWER(name) LIKE $1 ESCAPE '\'
		   OR LOWER(description) LIKE $1 ESCAPE '\'
		   OR LOWER(brand) LIKE $1 ESCAPE '\'
		   OR LOWER(category) LIKE $1 ESCAPE '\'
		ORDER BY id`

	insertProductSQL = `INSERT INTO products (name, description, brand, price, category, created_at, available, quantity, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	lockProductSQL = `SELECT image_url FROM products WHERE id = $1 FOR UPDATE`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, brand = $4, price = $5, category = $6,
		    available = $7, quantity = $8, image_url = COALESCE($9, image_url)
		WHERE id = $1
		RETURNING ` + productColumns

	deleteProductCartItemsSQL = `DELETE FROM cart_items WHERE product_id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (ProductRow, error) {
	var p ProductRow
	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Price, &p.Category,
		&p.CreatedAt, &p.Available, &p.Quantity, &p.ImageURL)
	return p, err
}

func (s *PostgresStore) queryProducts(ctx context.Context, query string, args ...any) ([]ProductRow, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ProductRow{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]ProductRow, error) {
	return s.queryProducts(ctx, listProductsSQL)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (ProductRow, error) {
	p, err := scanProduct(s.DB.QueryRowContext(ctx, getProductSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ProductRow{}, ErrNotFound
	}
	return p, err
}

// SearchProducts matches keyword case-insensitively as a literal substring.
func (s *PostgresStore) SearchProducts(ctx context.Context, keyword string) ([]ProductRow, error) {
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	return s.queryProducts(ctx, searchProductsSQL, pattern)
}

// escapeLike neutralises LIKE metacharacters so user input only matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CreateProduct inserts a product and returns it with its id
func (s *PostgresStore) CreateProduct(ctx context.Context, p ProductRow) (ProductRow, error) {
	err := s.DB.QueryRowContext(ctx, insertProductSQL,
		p.Name, p.Description, p.Brand, p.Price, p.Category, p.CreatedAt, p.Available, p.Quantity, p.ImageURL,
	).Scan(&p.ID)
	if err != nil {
		return ProductRow{}, classify(err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p ProductRow) (ProductRow, sql.NullString, error) {
	var updated ProductRow
	var previous sql.NullString

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// lock the row so concurrent updates serialize and we see the image being replaced
		if err := tx.QueryRowContext(ctx, lockProductSQL, p.ID).Scan(&previous); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		row := tx.QueryRowContext(ctx, updateProductSQL,
			p.ID, p.Name, p.Description, p.Brand, p.Price, p.Category, p.Available, p.Quantity, p.ImageURL)
		var err error
		updated, err = scanProduct(row)
		return err
	})
	if err != nil {
		return ProductRow{}, sql.NullString{}, err
	}
	return updated, previous, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) (sql.NullString, error) {
	var image sql.NullString

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, lockProductSQL, id).Scan(&image); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		// carts must never keep pointing at a deleted product
		if _, err := tx.ExecContext(ctx, deleteProductCartItemsSQL, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, deleteProductSQL, id)
		return err
	})
	if err != nil {
		return sql.NullString{}, err
	}
	return image, nil
}

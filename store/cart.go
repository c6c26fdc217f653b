package store

import (
	"context"
	"database/sql"
	"errors"
)

const (
	ensureCartSQL = `INSERT INTO carts (user_id) SELECT id FROM users WHERE username = $1 ON CONFLICT (user_id) DO NOTHING`

	cartIDSQL = `SELECT c.id FROM carts c JOIN users u ON u.id = c.user_id WHERE u.username = $1`

	productExistsSQL = `SELECT id FROM products WHERE id = $1 FOR SHARE`

	upsertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	cartItemsSQL = `SELECT p.id, p.name, p.price, p.image_url, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`
)

// getOrCreateCart makes sure the user's cart exists and returns its id. The insert is a
// no-op when a concurrent caller created the cart first, so both resolve to the same row.
func getOrCreateCart(ctx context.Context, q queryer, username string) (int64, error) {
	if _, err := q.ExecContext(ctx, ensureCartSQL, username); err != nil {
		return 0, err
	}
	var cartID int64
	if err := q.QueryRowContext(ctx, cartIDSQL, username).Scan(&cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// no such user
			return 0, ErrNotFound
		}
		return 0, err
	}
	return cartID, nil
}

func (s *PostgresStore) GetOrCreateCart(ctx context.Context, username string) (int64, error) {
	id, err := getOrCreateCart(ctx, s.DB, username)
	return id, classify(err)
}

// UpsertCartItem sets the quantity of productID in the user's cart, creating the cart
// and the item when missing. Quantity is replaced, not added.
func (s *PostgresStore) UpsertCartItem(ctx context.Context, username string, productID int64, qty int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// share-lock the product so it cannot be deleted under us
		var id int64
		if err := tx.QueryRowContext(ctx, productExistsSQL, productID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidReference
			}
			return err
		}

		cartID, err := getOrCreateCart(ctx, tx, username)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, upsertCartItemSQL, cartID, productID, qty)
		return err
	})
}

// RemoveCartItem is idempotent: removing an absent item is not an error.
func (s *PostgresStore) RemoveCartItem(ctx context.Context, username string, productID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := getOrCreateCart(ctx, tx, username)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, removeCartItemSQL, cartID, productID)
		return err
	})
}

func (s *PostgresStore) ClearCart(ctx context.Context, username string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := getOrCreateCart(ctx, tx, username)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, clearCartSQL, cartID)
		return err
	})
}

// GetCart returns the user's items joined with the current product name, price and image.
func (s *PostgresStore) GetCart(ctx context.Context, username string) ([]CartRow, error) {
	cartID, err := getOrCreateCart(ctx, s.DB, username)
	if err != nil {
		return nil, classify(err)
	}

	rows, err := s.DB.QueryContext(ctx, cartItemsSQL, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CartRow{}
	for rows.Next() {
		var c CartRow
		if err := rows.Scan(&c.ProductID, &c.Name, &c.Price, &c.ImageURL, &c.Quantity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
)

// seedLockKey is the advisory lock id serializing catalog seeding across instances.
const seedLockKey int64 = 0x5eed

const (
	seedLockSQL      = `SELECT pg_advisory_xact_lock($1)`
	countProductsSQL = `SELECT COUNT(*) FROM products`
)

// SeedProducts inserts products only when the catalog is empty and reports how many
// were inserted. Restarts and concurrent boots insert nothing.
func (s *PostgresStore) SeedProducts(ctx context.Context, products []ProductRow) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		if _, err := tx.ExecContext(ctx, seedLockSQL, seedLockKey); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, countProductsSQL).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, insertProductSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range products {
			var id int64
			if err := stmt.QueryRowContext(ctx,
				p.Name, p.Description, p.Brand, p.Price, p.Category, p.CreatedAt, p.Available, p.Quantity, p.ImageURL,
			).Scan(&id); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	models "storefront/model"
)

const (
	insertUserSQL = `INSERT INTO users (username, password_hash, roles) VALUES ($1, $2, $3) RETURNING id, created_at`

	// Inserts only while no other user exists. The singleton primary key makes a second
	// concurrent first signup wait for the first and then skip.
	grantFirstAdminSQL = `INSERT INTO admin_grant (user_id)
		SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM users WHERE id <> $1)
		ON CONFLICT (singleton) DO NOTHING`

	setRolesSQL = `UPDATE users SET roles = $2 WHERE id = $1`

	getUserSQL = `SELECT id, username, password_hash, roles, created_at FROM users WHERE username = $1`
)

// CreateUser registers a user. The very first registrant is elevated to ADMIN in the
// same transaction; everybody else is a USER. A taken username yields ErrConflict.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (UserRow, error) {
	u := UserRow{Username: username, PasswordHash: passwordHash, Roles: []string{models.RoleUser}}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, insertUserSQL, username, passwordHash, pq.Array(u.Roles)).
			Scan(&u.ID, &u.CreatedAt); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, grantFirstAdminSQL, u.ID)
		if err != nil {
			return err
		}
		if granted, _ := res.RowsAffected(); granted == 0 {
			return nil
		}

		u.Roles = []string{models.RoleAdmin}
		_, err = tx.ExecContext(ctx, setRolesSQL, u.ID, pq.Array(u.Roles))
		return err
	})
	if err != nil {
		return UserRow{}, err
	}
	if u.Roles[0] == models.RoleAdmin {
		s.logf("store: first user %q granted %s", username, models.RoleAdmin)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (UserRow, error) {
	var u UserRow
	err := s.DB.QueryRowContext(ctx, getUserSQL, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, pq.Array(&u.Roles), &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, ErrNotFound
	}
	return u, err
}

//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce  sync.Once
	pgDSN   string
	pgSetup error
)

// startPostgres runs one PostgreSQL container for the whole package.
func startPostgres(t *testing.T) string {
	t.Helper()
	pgOnce.Do(func() {
		ctx := context.Background()
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_PASSWORD": "password",
					"POSTGRES_DB":       "storefront",
				},
				WaitingFor: wait.ForAll(
					wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
					wait.ForListeningPort("5432/tcp"),
				).WithDeadline(90 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			pgSetup = err
			return
		}
		host, err := c.Host(ctx)
		if err != nil {
			pgSetup = err
			return
		}
		port, err := c.MappedPort(ctx, "5432/tcp")
		if err != nil {
			pgSetup = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://postgres:password@%s:%s/storefront?sslmode=disable", host, port.Port())
	})
	require.NoError(t, pgSetup)
	return pgDSN
}

func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	schema, err := os.ReadFile("../migrations.sql")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx, string(schema)))
	_, err = s.DB.ExecContext(ctx, `TRUNCATE cart_items, carts, admin_grant, users, products RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func mustProduct(t *testing.T, s *PostgresStore, name string) ProductRow {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), ProductRow{
		Name: name, Price: decimal.RequireFromString("9.99"), Category: "ELECTRONICS",
		CreatedAt: time.Now().UTC(), Available: true, Quantity: 5,
	})
	require.NoError(t, err)
	return p
}

func TestIntegration_ConcurrentFirstSignupsYieldOneAdmin(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	roles := make([][]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.CreateUser(ctx, fmt.Sprintf("user%d", i), "hash")
			roles[i], errs[i] = u.Roles, err
		}(i)
	}
	wg.Wait()

	admins := 0
	for i := range roles {
		require.NoError(t, errs[i])
		if roles[i][0] == "ADMIN" {
			admins++
		}
	}
	assert.Equal(t, 1, admins)

	var stored int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE 'ADMIN' = ANY(roles)`).Scan(&stored))
	assert.Equal(t, 1, stored)
}

func TestIntegration_DuplicateUsername(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "bob", "hash")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIntegration_ConcurrentGetOrCreateCart(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	const n = 10
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.GetOrCreateCart(ctx, "bob")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	_, err = s.GetOrCreateCart(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_UpsertReplacesQuantity(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)
	p := mustProduct(t, s, "Keyboard")

	require.NoError(t, s.UpsertCartItem(ctx, "bob", p.ID, 3))
	require.NoError(t, s.UpsertCartItem(ctx, "bob", p.ID, 5))

	items, err := s.GetCart(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	assert.ErrorIs(t, s.UpsertCartItem(ctx, "bob", p.ID+100, 1), ErrInvalidReference)
}

func TestIntegration_ConcurrentUpsertsKeepOneLine(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)
	p := mustProduct(t, s, "Keyboard")

	var wg sync.WaitGroup
	for q := 1; q <= 6; q++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			assert.NoError(t, s.UpsertCartItem(ctx, "bob", p.ID, q))
		}(q)
	}
	wg.Wait()

	items, err := s.GetCart(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.GreaterOrEqual(t, items[0].Quantity, 1)
	assert.LessOrEqual(t, items[0].Quantity, 6)
}

func TestIntegration_DeleteProductRemovesCartItems(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)
	keep := mustProduct(t, s, "Plushie")
	gone := mustProduct(t, s, "Keyboard")

	require.NoError(t, s.UpsertCartItem(ctx, "bob", keep.ID, 1))
	require.NoError(t, s.UpsertCartItem(ctx, "bob", gone.ID, 2))

	_, err = s.DeleteProduct(ctx, gone.ID)
	require.NoError(t, err)

	items, err := s.GetCart(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].ProductID)

	_, err = s.DeleteProduct(ctx, gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_SearchIsLiteral(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	mustProduct(t, s, "100% Cotton Tee")
	mustProduct(t, s, "Duck Plushie")

	got, err := s.SearchProducts(ctx, "%")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% Cotton Tee", got[0].Name)

	got, err = s.SearchProducts(ctx, "PLUSH")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.SearchProducts(ctx, "electronics")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIntegration_SeedOnlyOnce(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	rows := []ProductRow{
		{Name: "a", Price: decimal.RequireFromString("1"), Category: "BOOKS_STATIONERY", CreatedAt: time.Now(), Available: true},
		{Name: "b", Price: decimal.RequireFromString("2"), Category: "BOOKS_STATIONERY", CreatedAt: time.Now(), Available: true},
	}

	var wg sync.WaitGroup
	counts := make([]int, 4)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.SeedProducts(ctx, rows)
			assert.NoError(t, err)
			counts[i] = n
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, len(rows), total)

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(rows))
}

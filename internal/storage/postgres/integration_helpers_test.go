package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
)

// storefrontTables: все таблицы витрины, дочерние раньше родительских.
var storefrontTables = []string{
	"outbox_messages",
	"timeline_events",
	"order_items",
	"orders",
	"customers",
	"products",
	"categories",
}

// rawTestStore подключается к базе из STOREFRONT_POSTGRES_TEST_DSN, схема не трогается.
func rawTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("STOREFRONT_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testStore возвращает базу с актуальной схемой и пустыми таблицами.
func testStore(t *testing.T) *Store {
	t.Helper()
	store := rawTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, store.MigrateUp(ctx, 0))
	resetTestTables(t, store)
	return store
}

func resetTestTables(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := store.DB().ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(storefrontTables, ", ")+" RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

// seedTestCatalog заливает встроенный seed: категории, товары с остатками и покупателей.
func seedTestCatalog(t *testing.T, store *Store) catalog.Data {
	t.Helper()
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	data, err := seed.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.SeedCatalog(ctx, data))
	return data
}

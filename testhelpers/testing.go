package testhelpers

import (
	"context"
	"os"
	"testing"

	"marketplace/internal/models"
	"marketplace/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties every table.
// The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, connString, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE reviews, products, categories, users RESTART IDENTITY CASCADE`); err != nil {
		pool.Close()
		t.Fatalf("Failed to truncate test database: %v", err)
	}

	db := &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
	t.Cleanup(func() { _ = db.Cleanup() })
	return db
}

// SetupTestUser inserts an active user with the given role
func SetupTestUser(t *testing.T, db *TestDB, email string, role models.Role) int64 {
	t.Helper()

	var id int64
	query := `
		INSERT INTO users (email, hashed_password, role)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := db.Pool.QueryRow(context.Background(), query, email, "x", role.String()).Scan(&id); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return id
}

// SetupTestCategory creates a root category owned by adminID
func SetupTestCategory(t *testing.T, db *TestDB, adminID int64) int64 {
	t.Helper()

	var id int64
	query := `
		INSERT INTO categories (name, admin_id)
		VALUES ($1, $2)
		RETURNING id
	`
	if err := db.Pool.QueryRow(context.Background(), query, "Test Category", adminID).Scan(&id); err != nil {
		t.Fatalf("Failed to create test category: %v", err)
	}
	return id
}

// SetupTestProduct creates an unrated product in categoryID
func SetupTestProduct(t *testing.T, db *TestDB, sellerID, categoryID int64) int64 {
	t.Helper()

	var id int64
	query := `
		INSERT INTO products (name, description, price, stock, category_id, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := db.Pool.QueryRow(context.Background(), query,
		"Test Product", "Test product description", 10.99, 100, categoryID, sellerID).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return id
}

// Package repotest opens throwaway databases for tests.
package repotest

import (
	"testing"

	pkgdb "github.com/Skotchmaster/shop_payments/pkg/db"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewSQLite returns an in-memory database with the payment schema and the
// products table migrated.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), pkgdb.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Reconciliation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func SeedProduct(t testing.TB, db *gorm.DB, name, price string) uuid.UUID {
	t.Helper()
	p := models.Product{ID: uuid.New(), Name: name, Price: price}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

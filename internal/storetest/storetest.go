// Package storetest opens throwaway sqlite databases with the full schema
// migrated, and seeds common fixtures.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/pkg/common"
)

var seq int64

// Open returns an in-memory database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pizzeria_test_%d?mode=memory&cache=shared&_foreign_keys=1", atomic.AddInt64(&seq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, username string, staff bool) *domain.User {
	t.Helper()
	u := &domain.User{ID: common.UUIDint64(), Username: username, Password: "x", IsStaff: staff}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateMenuItem stores a menu item; empty price strings leave the size unpriced.
func CreateMenuItem(t testing.TB, db *gorm.DB, name, small, large string) *domain.MenuItem {
	t.Helper()
	m := &domain.MenuItem{ID: common.UUIDint64(), Name: name, Category: domain.CategoryPizza}
	if small != "" {
		m.PriceSmall = domain.SomeMoney(small)
	}
	if large != "" {
		m.PriceLarge = domain.SomeMoney(large)
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	return m
}

func CreateTopping(t testing.TB, db *gorm.DB, name, price string) *domain.Topping {
	t.Helper()
	tp := &domain.Topping{ID: common.UUIDint64(), Name: name, Price: domain.MustMoney(price)}
	if err := db.Create(tp).Error; err != nil {
		t.Fatalf("create topping: %v", err)
	}
	return tp
}

func CreateOrder(t testing.TB, db *gorm.DB, userID int64) *domain.Order {
	t.Helper()
	o := &domain.Order{ID: common.UUIDint64(), UserID: userID, Status: domain.OrderPending, TotalPrice: domain.MustMoney("0")}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

package app

import (
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/config"
	"github.com/talkincode/pizzeria/internal/account"
	"github.com/talkincode/pizzeria/internal/catalog"
	"github.com/talkincode/pizzeria/internal/order"
	"github.com/talkincode/pizzeria/internal/payment"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// ServiceProvider exposes the core services wired to the application database
type ServiceProvider interface {
	Catalog() *catalog.Service
	Orders() *order.Service
	Payments() *payment.Service
	Accounts() *account.Service
	Tokens() *account.TokenIssuer
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	ServiceProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}

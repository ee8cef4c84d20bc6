package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/pizzeria/config"
)

// getDatabase opens the configured database or exits the process.
func getDatabase(cfg config.DBConfig, datadir string) *gorm.DB {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dbfile := cfg.Name
		if !filepath.IsAbs(dbfile) {
			dbfile = filepath.Join(datadir, dbfile)
		}
		if err := os.MkdirAll(filepath.Dir(dbfile), 0o755); err != nil {
			zap.S().Fatalf("create data dir: %v", err)
		}
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", dbfile))
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		zap.S().Fatalf("open %s database: %v", cfg.Type, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Fatalf("database handle: %v", err)
	}
	if cfg.Type == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db
}

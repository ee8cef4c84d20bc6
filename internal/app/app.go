package app

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/config"
	"github.com/talkincode/pizzeria/internal/account"
	"github.com/talkincode/pizzeria/internal/catalog"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/order"
	"github.com/talkincode/pizzeria/internal/payment"
	"github.com/talkincode/pizzeria/pkg/common"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	gateway   payment.Gateway
	tokens    *account.TokenIssuer
	catalog   *catalog.Service
	orders    *order.Service
	payments  *payment.Service
	accounts  *account.Service
}

// Ensure Application implements all interfaces
var (
	_ DBProvider      = (*Application)(nil)
	_ ConfigProvider  = (*Application)(nil)
	_ ServiceProvider = (*Application)(nil)
	_ AppContext      = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
	a.initServices()
}

// OverrideGateway replaces the payment gateway (used in tests).
func (a *Application) OverrideGateway(gw payment.Gateway) {
	a.gateway = gw
	a.initServices()
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	if err := common.SetNodeID(cfg.System.NodeID); err != nil {
		zap.S().Fatalf("snowflake node: %v", err)
	}

	a.gormDB = getDatabase(cfg.Database, cfg.GetDataDir())
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(cfg.Database.Debug); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.initServices()
	a.checkSuper()
	a.checkMenu()
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}
		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}
	zap.ReplaceGlobals(logger)
}

func (a *Application) initServices() {
	if a.gormDB == nil {
		return
	}
	if a.tokens == nil {
		secret := a.appConfig.Auth.JWTSecret
		if secret == "" {
			secret = randomSecret()
			zap.L().Warn("auth.jwt_secret not set, tokens will not survive a restart")
		}
		a.tokens = account.NewTokenIssuer(secret, a.appConfig.System.Appid, a.appConfig.Auth.TokenTTL)
	}
	if a.gateway == nil {
		a.gateway = payment.NewStripeGateway(a.appConfig.Payment.StripeSecretKey)
	}
	a.catalog = catalog.NewService(a.gormDB)
	a.orders = order.NewService(a.gormDB)
	a.payments = payment.NewService(a.gormDB, a.gateway)
	a.accounts = account.NewService(a.gormDB, a.tokens)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func (a *Application) Catalog() *catalog.Service {
	return a.catalog
}

func (a *Application) Orders() *order.Service {
	return a.orders
}

func (a *Application) Payments() *payment.Service {
	return a.payments
}

func (a *Application) Accounts() *account.Service {
	return a.accounts
}

func (a *Application) Tokens() *account.TokenIssuer {
	return a.tokens
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable("order_item_toppings")
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	a.DropAll()
	if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}

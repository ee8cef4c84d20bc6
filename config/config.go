// Package config loads the application configuration from a YAML file, an
// optional .env file and PIZZERIA_* environment variables, in that order of
// increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PIZZERIA_"

type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
	NodeID   int64  `yaml:"node_id"` // snowflake node
}

type WebConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Metrics      bool          `yaml:"metrics"`
}

type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	SSLMode  string `yaml:"sslmode"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode"` // production or development
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminUsername string        `yaml:"admin_username"`
	AdminPassword string        `yaml:"admin_password"`
}

type PaymentConfig struct {
	StripeSecretKey string `yaml:"stripe_secret_key"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Database DBConfig      `yaml:"database"`
	Logger   LogConfig     `yaml:"logger"`
	Auth     AuthConfig    `yaml:"auth"`
	Payment  PaymentConfig `yaml:"payment"`
}

// Default returns a configuration usable for local development.
func Default() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "pizzeria",
			Location: "UTC",
			Workdir:  "./var/pizzeria",
			NodeID:   1,
		},
		Web: WebConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			Metrics:      true,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "pizzeria.db",
			User:     "postgres",
			SSLMode:  "disable",
			MaxConn:  50,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:     "development",
			Filename: "./var/pizzeria/pizzeria.log",
		},
		Auth: AuthConfig{
			TokenTTL:      time.Hour,
			AdminUsername: "admin",
		},
	}
}

// Load reads cfgfile (skipped when empty or missing), then .env, then the
// environment, and validates the result.
func Load(cfgfile string) (*AppConfig, error) {
	cfg := Default()
	if cfgfile != "" {
		data, err := os.ReadFile(cfgfile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse %s", cfgfile)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "read %s", cfgfile)
		}
	}
	// a missing .env is the normal case outside development
	_ = godotenv.Load()
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *AppConfig) applyEnv(lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = cast.ToInt(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = cast.ToBool(v)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = cast.ToDuration(v)
		}
	}

	str("SYSTEM_LOCATION", &c.System.Location)
	str("SYSTEM_WORKDIR", &c.System.Workdir)
	boolean("SYSTEM_DEBUG", &c.System.Debug)
	if v, ok := lookup(envPrefix + "SYSTEM_NODE_ID"); ok {
		c.System.NodeID = cast.ToInt64(v)
	}

	str("WEB_HOST", &c.Web.Host)
	integer("WEB_PORT", &c.Web.Port)
	boolean("WEB_METRICS", &c.Web.Metrics)

	str("DB_TYPE", &c.Database.Type)
	str("DB_HOST", &c.Database.Host)
	integer("DB_PORT", &c.Database.Port)
	str("DB_NAME", &c.Database.Name)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWD", &c.Database.Passwd)
	str("DB_SSLMODE", &c.Database.SSLMode)
	boolean("DB_DEBUG", &c.Database.Debug)

	str("LOGGER_MODE", &c.Logger.Mode)
	boolean("LOGGER_FILE_ENABLE", &c.Logger.FileEnable)
	str("LOGGER_FILENAME", &c.Logger.Filename)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	str("ADMIN_USERNAME", &c.Auth.AdminUsername)
	str("ADMIN_PASSWORD", &c.Auth.AdminPassword)

	str("STRIPE_SECRET_KEY", &c.Payment.StripeSecretKey)
}

// Validate rejects configurations the server cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Database.Type {
	case "postgres", "sqlite":
	default:
		return errors.Errorf("database.type %q is not supported", c.Database.Type)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return errors.Errorf("web.port %d is out of range", c.Web.Port)
	}
	if c.Logger.Mode == "production" {
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("auth.jwt_secret is required in production mode")
		}
		if strings.TrimSpace(c.Auth.AdminPassword) == "" {
			return errors.New("auth.admin_password is required in production mode")
		}
	}
	if c.System.NodeID < 0 || c.System.NodeID > 1023 {
		return errors.Errorf("system.node_id %d is out of range 0-1023", c.System.NodeID)
	}
	return nil
}

// GetDataDir returns the directory for local data such as the sqlite file.
func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/pizzeria/config"
	"github.com/talkincode/pizzeria/internal/adminapi"
	"github.com/talkincode/pizzeria/internal/app"
	"github.com/talkincode/pizzeria/internal/webserver"
)

var (
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	migrate  = flag.Bool("migrate", false, "migrate the database schema, then exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*conffile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	switch {
	case *initdb:
		application.InitDb()
		zap.S().Info("database initialized")
		return
	case *migrate:
		if err := application.MigrateDB(true); err != nil {
			zap.S().Errorf("migrate database: %v", err)
			os.Exit(1)
		}
		return
	}

	webserver.Init(application)
	adminapi.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- webserver.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			zap.S().Errorf("web server stopped: %v", err)
		}
	case <-ctx.Done():
		zap.S().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webserver.Shutdown(shutdownCtx); err != nil {
			zap.S().Errorf("shutdown: %v", err)
		}
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/app"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/config"
	transport "github.com/njprem/Catalog_Backup_BackEnd/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, mirror, flush, err := app.SetupLogging(cfg)
	if err != nil {
		slog.Error("logging setup", "error", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	auth, err := app.NewAuth(cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	routerCfg := transport.RouterConfig{
		AllowOrigins:   cfg.AllowOrigins,
		MaxUploadBytes: cfg.UploadMaxBytes,
	}
	if mirror != nil {
		routerCfg.LogMirror = mirror
	}
	e := transport.NewRouter(routerCfg)
	transport.RegisterAuth(e, auth)
	transport.RegisterCatalogBackup(e, auth, transport.CatalogBackupServices{
		Analysis: services.Analysis,
		Export:   services.Export,
		Upload:   services.Upload,
		Apply:    services.Apply,
	}, cfg.UploadMaxBytes)
	transport.RegisterSwagger(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()
	logger.Info("catalog backup api listening", "port", cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

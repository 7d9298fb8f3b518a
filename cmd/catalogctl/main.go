package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/app"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/cli"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/config"
)

func main() {
	cfg := config.Load()

	_, _, flush, err := app.SetupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var services *app.Services
	ctlApp := &cli.App{
		StepsPerSecond: cfg.CLIStepsPerSecond,
		Load: func(ctx context.Context, a *cli.App) error {
			var err error
			if services, err = app.Build(ctx, cfg); err != nil {
				return err
			}
			a.Analysis = services.Analysis
			a.Export = services.Export
			a.Upload = services.Upload
			a.Apply = services.Apply
			return nil
		},
	}

	root := cli.NewRootCommand(ctlApp)
	root.PersistentFlags().StringVar(&ctlApp.Actor, "actor", os.Getenv("USER"), "name recorded in the audit trail for applied actions")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = root.ExecuteContext(ctx)
	stop()
	if services != nil {
		services.Close()
	}
	flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

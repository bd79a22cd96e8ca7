package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alexanderramin/budgetcore/internal/cli"
	"github.com/alexanderramin/budgetcore/internal/config"
	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/alexanderramin/budgetcore/internal/repository"
	"github.com/alexanderramin/budgetcore/internal/service"
	"github.com/alexanderramin/budgetcore/internal/telemetry"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories and the transactional API.
	api := service.NewBudgetAPI(
		repository.NewSQLiteNodeRepo(database),
		repository.NewSQLiteGroupRepo(database),
		repository.NewSQLiteMarkupRepo(database),
		repository.NewSQLiteFringeRepo(database),
		db.NewSQLiteUnitOfWork(database),
	)

	var observer engine.UseCaseObserver = engine.NoopUseCaseObserver{}
	if cfg.LogUseCases {
		observer = engine.NewLogUseCaseObserver(logger)
	}

	app := &cli.App{
		API: api,
		NewProcessor: func() *engine.Processor {
			return engine.NewProcessor(api, engine.Options{
				SearchDebounce: cfg.SearchDebounce,
				Logger:         logger,
				Observer:       observer,
			})
		},
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		},
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

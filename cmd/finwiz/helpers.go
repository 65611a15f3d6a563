package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/category"
	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/ledger"
	"github.com/Veraticus/finwiz/internal/notify"
	"github.com/Veraticus/finwiz/internal/plaid"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/Veraticus/finwiz/internal/storage"
	"github.com/Veraticus/finwiz/internal/syncer"
)

// app wires the components a command needs from the loaded configuration.
type app struct {
	store     service.Storage
	publisher notify.Publisher
	locks     *common.UserLocks
}

// newApp opens and migrates the database. Callers must call close.
func newApp(ctx context.Context) (*app, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &app{
		store:     store,
		publisher: notify.NopPublisher{},
		locks:     common.NewUserLocks(),
	}, nil
}

// connectPublisher switches notification delivery to the broker when one is configured.
func (a *app) connectPublisher() error {
	amqpCfg, enabled := appConfig.AMQPPublisherConfig()
	if !enabled {
		return nil
	}

	publisher, err := notify.NewAMQPPublisher(amqpCfg)
	if err != nil {
		return err
	}
	a.publisher = publisher
	slog.Info("Publishing notifications to broker", "exchange", amqpCfg.Exchange, "queue", amqpCfg.Queue)
	return nil
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		slog.Warn("Failed to close publisher", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func (a *app) orchestrator(provider plaid.TransactionSyncer, opts syncer.Options) (*syncer.Orchestrator, error) {
	notifyOpts, err := appConfig.NotifyOptions()
	if err != nil {
		return nil, err
	}

	return syncer.New(
		a.store,
		provider,
		category.NewResolver(a.store, appConfig.Category.CacheTTL),
		ledger.NewUpdater(notify.NewEmitter(notifyOpts)),
		a.publisher,
		a.locks,
		opts,
	), nil
}

func (a *app) engine() *budget.Engine {
	return budget.NewWithConfig(a.store, a.locks, appConfig.BudgetConfig())
}

func newPlaidClient() (*plaid.Client, error) {
	cfg, err := appConfig.PlaidClientConfig()
	if err != nil {
		return nil, common.NewUserError("Plaid credentials are not configured (set plaid.client_id and plaid.secret)", err)
	}
	return plaid.NewClient(cfg)
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Validationf("invalid user id %q", arg)
	}
	return id, nil
}

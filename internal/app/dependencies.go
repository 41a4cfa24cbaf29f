package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies: хранилища, выбранные по StorageDriver.
// Каталог и заказы текущего процесса всегда живут в памяти; PostgreSQL хранит остатки,
// архив заказов, outbox и timeline между перезапусками.
type runtimeDependencies struct {
	catalog        memory.Catalog
	customers      domain.CustomerDirectory
	orders         domain.OrderRepository
	outboxRepo     domain.OutboxRepository
	timelineRepo   domain.TimelineRepository
	archive        domain.OrderArchive
	ids            *domain.IDSequence
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	seed, err := catalog.LoadSeed(cfg.SeedFile)
	if err != nil {
		return runtimeDependencies{}, err
	}
	data, err := seed.Build()
	if err != nil {
		return runtimeDependencies{}, err
	}

	deps := runtimeDependencies{
		catalog:   memory.NewCatalog(data.Categories, data.Products),
		customers: memory.NewCustomerDirectory(data.Customers),
		orders:    memory.NewOrderRepository(),
		ids:       domain.NewIDSequence(1),
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.archive = memory.NewOrderArchive()
		deps.storageChecker = healthcheck.NewFuncChecker("storage", func() error { return nil })
		logger.WithField("products", len(data.Products)).Info("using in-memory storage")
		return deps, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres dsn is required for postgres storage")
		}
		return initPostgresDependencies(ctx, cfg, data, deps, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgresDependencies(
	ctx context.Context,
	cfg Config,
	data catalog.Data,
	deps runtimeDependencies,
	logger *log.Entry,
) (runtimeDependencies, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return runtimeDependencies{}, err
	}
	fail := func(err error) (runtimeDependencies, error) {
		_ = store.Close()
		return runtimeDependencies{}, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			return fail(fmt.Errorf("migrate postgres: %w", err))
		}
	}
	if err := store.SeedCatalog(ctx, data); err != nil {
		return fail(err)
	}

	levels, err := store.LoadStock(ctx)
	if err != nil {
		return fail(err)
	}
	applied := deps.catalog.ApplyStock(levels)

	maxID, err := store.MaxOrderID(ctx)
	if err != nil {
		return fail(err)
	}
	deps.ids.Observe(maxID)

	deps.outboxRepo = postgres.NewOutboxRepository(store)
	deps.timelineRepo = postgres.NewTimelineRepository(store)
	deps.archive = postgres.NewOrderArchive(store)
	deps.storageChecker = healthcheck.NewFuncChecker("postgres", store.Check)
	deps.closeFn = store.Close

	logger.WithFields(log.Fields{
		"stock_levels": applied,
		"last_order":   maxID,
	}).Info("using postgres storage")
	return deps, nil
}

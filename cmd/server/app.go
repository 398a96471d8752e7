package main

import (
	"fmt"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/database"
	"github.com/automax/routing/internal/geocoder"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/repository"
	"github.com/automax/routing/internal/services"
	"github.com/automax/routing/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// application holds the wired dependencies shared by every command.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *gorm.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.RoutingMetrics

	cards  repository.RecordCardRepository
	groups repository.GroupRepository

	recordCards services.RecordCardService
	groupTree   services.GroupService
}

func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewRoutingMetrics(registry)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := database.Seed(db); err != nil {
		log.Warn("Failed to seed database", "error", err)
	}

	var redisClient *redis.Client
	var lock database.Locker = database.NewLocalLock()
	if cfg.Redis.Enabled {
		if redisClient, err = database.ConnectRedis(&cfg.Redis); err != nil {
			return nil, err
		}
		lock = database.NewTreeLock(redisClient, cfg.Routing.RebuildLockTTL)
	} else {
		log.Warn("Redis disabled, group tree lock is local to this process")
	}

	var snapshots storage.SnapshotStore = storage.NopSnapshotStore{}
	if cfg.MinIO.Enabled {
		minioStorage, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			return nil, err
		}
		snapshots = minioStorage
	}

	groups := repository.NewGroupRepository(db)
	rules := repository.NewDerivationRepository(db)
	cards := repository.NewRecordCardRepository(db)
	ubications := repository.NewUbicationRepository(db)

	client := geocoder.New(cfg.Geocoder, redisClient, log, m)
	resolver := geocoder.NewResolver(client, ubications, log)

	tree := services.NewAmbitTree(groups, lock, snapshots, cfg.Routing, log, m)
	selector := services.NewDerivationSelector(rules, resolver, cfg.Routing, log, m)
	evaluator := services.NewReassignmentEvaluator(groups, cards, rules, tree, cfg.Routing)
	validator := services.NewClaimValidator(cards, rules, cfg.Routing)

	log.Info("Routing engine wired", "geocoder", cfg.Geocoder.Provider, "geocoding", cfg.Routing.GeocodingEnabled)
	return &application{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       redisClient,
		registry:    registry,
		metrics:     m,
		cards:       cards,
		groups:      groups,
		recordCards: services.NewRecordCardService(cards, groups, selector, evaluator, validator, log),
		groupTree:   services.NewGroupService(groups, tree, log),
	}, nil
}

func (a *application) Close() {
	if a.redis != nil {
		if err := database.CloseRedis(a.redis); err != nil {
			a.log.Warn("Failed to close redis", "error", err)
		}
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
	a.log.Sync()
}

package server

import (
	"log-onboarding-engine/internal/cache"
	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/database"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/repository"
	"log-onboarding-engine/internal/repository/memory"
	"log-onboarding-engine/internal/repository/postgres"
	"log-onboarding-engine/internal/service"
)

// Resources are the connections a configured server owns
type Resources struct {
	DB    *database.DB
	Cache *cache.RedisClient
}

// Close releases every open connection
func (r *Resources) Close() {
	logger := logging.GetGlobalLogger().WithComponent("server")
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			logger.Error("Error closing database", err)
		}
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			logger.Error("Error closing Redis", err)
		}
	}
}

// NewFromConfig connects the configured dependencies and builds a server over them.
// Sessions live in PostgreSQL when the database is enabled and in memory otherwise;
// a Redis cache that cannot be reached is skipped.
func NewFromConfig(cfg *config.Config) (*Server, *Resources, error) {
	logger := logging.GetGlobalLogger().WithComponent("server")
	res := &Resources{}

	var repo *repository.Repository
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database, cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		res.DB = db
		repo = postgres.NewRepository(db.DB)
	} else {
		logger.Info("Database disabled, sessions are kept in memory")
		repo = memory.NewRepository()
	}

	var extractionCache service.ExtractionCache
	if cfg.Redis.Enabled {
		rc, err := cache.New(&cfg.Redis)
		if err != nil {
			logger.Warnf("Failed to initialize Redis cache, continuing without it: %v", err)
		} else {
			res.Cache = rc
			extractionCache = rc
			logger.Info("Redis cache connected successfully")
		}
	}

	metrics := monitoring.NewMetricsCollector()
	services := service.NewServicesWithConfig(repo, cfg, extractionCache, metrics)

	srv := New(cfg, services, metrics)
	if res.DB != nil {
		srv.AddHealthCheck("database", res.DB.Health)
	}
	if res.Cache != nil {
		srv.AddHealthCheck("redis", res.Cache.Health)
	}
	return srv, res, nil
}

package service

import (
	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
	"log-onboarding-engine/internal/repository"
)

// Services aggregates all service interfaces
type Services struct {
	Extraction *ExtractionService
	Session    *SessionService
}

// NewServices creates the services over repo with default limits
func NewServices(repo *repository.Repository) *Services {
	extraction := NewExtractionService(parser.NewParserManager(), DefaultExtractionOptions())
	return &Services{
		Extraction: extraction,
		Session:    NewSessionService(repo, extraction),
	}
}

// NewServicesWithConfig creates the services with configured limits, an optional
// extraction cache and optional metrics
func NewServicesWithConfig(repo *repository.Repository, cfg *config.Config, cache ExtractionCache, metrics *monitoring.MetricsCollector) *Services {
	extraction := NewExtractionService(parser.NewParserManager(), OptionsFromConfig(cfg)).
		WithMetrics(metrics)
	if cache != nil {
		extraction.WithCache(cache)
	}

	return &Services{
		Extraction: extraction,
		Session:    NewSessionService(repo, extraction).WithMetrics(metrics),
	}
}

// OptionsFromConfig maps the server and regex configuration to extraction limits
func OptionsFromConfig(cfg *config.Config) ExtractionOptions {
	return ExtractionOptions{
		MaxSampleBytes: cfg.Server.MaxSampleBytes,
		BatchWorkers:   cfg.Server.BatchWorkers,
		Regex: regex.Options{
			MatchTimeout: cfg.Regex.MatchTimeout,
			MaxMatches:   cfg.Regex.MaxMatches,
		},
	}
}

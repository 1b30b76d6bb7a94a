// Package control wires configuration into a running analysis service.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/fluxadm/analyzer/internal/analysis/orchestrator"
	"github.com/fluxadm/analyzer/internal/core/config"
	"github.com/fluxadm/analyzer/internal/core/domain"
	"github.com/fluxadm/analyzer/internal/infra/cache"
	"github.com/fluxadm/analyzer/internal/infra/provider"
	"github.com/fluxadm/analyzer/internal/infra/storage"
	"github.com/fluxadm/analyzer/internal/infra/storage/postgres"
	"github.com/fluxadm/analyzer/internal/server"
)

// Config holds the application configuration.
type Config struct {
	Port      int
	Providers []config.ProviderConfig
	Cache     config.CacheConfig
	Database  postgres.Config
}

// Service is the main application struct that manages the analyzer
// lifecycle.
type Service struct {
	cfg       Config
	orch      *orchestrator.Orchestrator
	apiServer *server.Server
	cache     *cache.ResultCache
	db        *postgres.DB
	analyses  storage.AnalysisRepository
	attempts  storage.AttemptRepository
	probes    []*provider.HealthProbe
	log       *slog.Logger
}

// NewService creates a new Service instance with all dependencies
// initialized.
func NewService(cfg Config) (*Service, error) {
	s := &Service{cfg: cfg, log: slog.Default()}

	// 1. Initialize the audit store, if configured
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		s.db = db
		s.analyses = postgres.NewAnalysisRepo(db)
		s.attempts = postgres.NewAttemptRepo(db)
		slog.Info("Using PostgreSQL audit store")
	} else {
		slog.Info("Audit store disabled, results are not persisted")
	}

	// 2. Initialize the result cache, if configured. Cache failures never
	// block startup.
	if cfg.Cache.URL != "" {
		rc, err := cache.New(cache.Config{
			URL:      cfg.Cache.URL,
			Password: cfg.Cache.Password,
			TTL:      cfg.Cache.CacheTTL(),
		})
		if err != nil {
			slog.Warn("Failed to connect to Redis, caching disabled", "error", err)
		} else {
			s.cache = rc
			slog.Info("Result cache enabled", "ttl", cfg.Cache.CacheTTL())
		}
	}

	// 3. Build the provider chain
	var specs []orchestrator.ProviderSpec
	for _, pc := range cfg.Providers {
		adapter, err := s.buildAdapter(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		specs = append(specs, orchestrator.ProviderSpec{
			Adapter:     adapter,
			Breaker:     pc.BreakerSettings(),
			Retry:       pc.RetryPolicy(),
			Timeout:     pc.CallTimeout(),
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
		})
		slog.Info("Provider configured", "name", pc.Name, "type", pc.Type, "model", pc.Model)
	}

	// 4. Initialize the orchestrator
	orch, err := orchestrator.New(orchestrator.Config{
		Providers: specs,
		OnAttempt: s.recordAttempt,
	})
	if err != nil {
		return nil, err
	}
	s.orch = orch

	// 5. Initialize the API server
	s.apiServer = server.NewServer(orch, cfg.Port, server.Options{
		Cache:    s.cache,
		Analyses: s.analyses,
		DB:       dbChecker(s.db),
	})

	return s, nil
}

func (s *Service) buildAdapter(pc config.ProviderConfig) (provider.Adapter, error) {
	switch pc.Type {
	case "openai":
		return provider.NewOpenAIProvider(pc.Name, pc.APIKey, pc.Model, pc.CallTimeout()), nil
	case "anthropic":
		return provider.NewAnthropicProvider(pc.Name, pc.APIKey, pc.Model, pc.CallTimeout()), nil
	case "local":
		var probe *provider.HealthProbe
		if pc.HealthAddr != "" {
			p, err := provider.NewHealthProbe(pc.Name, pc.HealthAddr, 5*time.Second)
			if err != nil {
				return nil, fmt.Errorf("failed to create health probe: %w", err)
			}
			probe = p
			s.probes = append(s.probes, p)
		}
		return provider.NewLocalProvider(pc.Name, pc.Endpoint, pc.Model, pc.CallTimeout(), probe), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// recordAttempt persists one provider attempt to the audit store. Runs off
// the request path so a slow database never delays failover.
func (s *Service) recordAttempt(a domain.ProviderAttempt) {
	if s.attempts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.attempts.Save(ctx, &a); err != nil {
			s.log.Warn("Failed to record provider attempt", "error", err)
		}
	}()
}

// Analyze runs one analysis through the cache and provider chain. Used by
// the one-shot CLI path; the HTTP handler goes through the same
// collaborators.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) domain.AnalysisResult {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, req.Text); ok {
			return res
		}
	}

	res := s.orch.Analyze(ctx, req)

	if s.cache != nil {
		s.cache.Set(ctx, req.Text, res)
	}
	if s.analyses != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analyses.Save(saveCtx, &storage.StoredAnalysis{
			RequestID:  req.ID,
			DocumentID: req.DocumentID,
			Result:     res,
		}); err != nil {
			s.log.Warn("Failed to persist analysis", "error", err)
		}
	}
	return res
}

// Orchestrator exposes the provider chain for status commands.
func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Analyses exposes the audit store, or nil when persistence is disabled.
func (s *Service) Analyses() storage.AnalysisRepository {
	return s.analyses
}

// Start starts the API server.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.apiServer.Start(); err != nil {
			s.log.Error("API server failed", "error", err)
		}
	}()
	s.log.Info("Analyzer started", "port", s.cfg.Port, "providers", len(s.cfg.Providers))
	return nil
}

// Stop stops the service and closes all connections.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping analyzer...")

	for _, p := range s.probes {
		if err := p.Close(); err != nil {
			s.log.Warn("Failed to close health probe", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.apiServer.Stop(ctx)
}

// dbChecker adapts the optional DB handle to the server's health
// interface without passing a typed nil.
func dbChecker(db *postgres.DB) server.HealthChecker {
	if db == nil {
		return nil
	}
	return db
}

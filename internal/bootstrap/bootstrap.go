// Package bootstrap wires configuration into the running services shared by
// the HTTP server, the VK bot and the maintenance commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"deepdive/internal/application"
	"deepdive/internal/coach"
	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/sparring"
	"deepdive/internal/storage"
	"deepdive/pkg/config"
)

type App struct {
	Registry *prometheus.Registry
	Store    storage.Store
	Sparring *application.SparringService
	Coaching *application.CoachingService
	Sessions *application.SessionService
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(reg)

	var client llm.Client
	if cfg.HasLLM() {
		c, err := llm.New(ctx, cfg.LLMSettings(), m, log)
		if err != nil {
			return nil, fmt.Errorf("llm client: %w", err)
		}
		client = c
		log.Info("llm client ready", zap.String("provider", cfg.LLM.Provider), zap.String("model", client.Model()))
	} else {
		log.Warn("no model credential configured, serving deterministic fallbacks", zap.String("provider", cfg.LLM.Provider))
	}

	store := storage.New(ctx, cfg.StorageConfig(), log, m)

	rw, err := coach.NewRewriter(client, cfg.RewriteCacheSize, log, m)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		Registry: reg,
		Store:    store,
		Sparring: application.NewSparringService(store,
			sparring.NewGenerator(client, store, cfg.SparringOptions(), log, m),
			sparring.NewSummarizer(client, log, m),
			log),
		Coaching: application.NewCoachingService(store, coach.New(client, store, log, m), log),
		Sessions: application.NewSessionService(store, rw),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

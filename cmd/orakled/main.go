// Command orakled runs the Orakle middleware: it supervises the
// skills-host and python-bridge subprocesses, loads the skill catalog,
// and serves the HTTP façade.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/orakle-run/orakle/config"
	"github.com/orakle-run/orakle/conversation"
	"github.com/orakle-run/orakle/llm"
	"github.com/orakle-run/orakle/llm/anthropic"
	"github.com/orakle-run/orakle/llm/openai"
	"github.com/orakle-run/orakle/matcher"
	orakle "github.com/orakle-run/orakle"
	"github.com/orakle-run/orakle/skills"
	"github.com/orakle-run/orakle/supervisor"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := config.NewStore(os.Getenv("ORAKLE_CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := store.Snapshot()

	primary, primaryModel, err := buildProvider(cfg, cfg.DefaultModel)
	if err != nil {
		logger.Error("failed to build primary provider", "error", err)
		os.Exit(1)
	}
	interpreter, interpreterModel, err := buildProvider(cfg, cfg.DefaultModel)
	if err != nil {
		logger.Error("failed to build interpreter provider", "error", err)
		os.Exit(1)
	}
	matcherProvider, matcherModel, err := buildProvider(cfg, cfg.DefaultModel)
	if err != nil {
		logger.Error("failed to build matcher provider", "error", err)
		os.Exit(1)
	}

	sup := supervisor.New()
	specs := make([]supervisor.ServiceSpec, 0, len(cfg.Services))
	var skillsHostPort, bridgePort int
	for _, svc := range cfg.Services {
		specs = append(specs, supervisor.ServiceSpec{
			Name:       svc.Name,
			Binary:     svc.Binary,
			Args:       svc.Args,
			Port:       svc.Port,
			HealthURL:  localURL(svc.Port, svc.HealthPath),
			StartupMax: svc.StartupMax,
		})
		switch svc.Name {
		case "skills-host":
			skillsHostPort = svc.Port
		case "python-bridge":
			bridgePort = svc.Port
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.StartAll(ctx, specs); err != nil {
		logger.Error("failed to start supervised services", "error", err)
		os.Exit(1)
	}

	registry := skills.NewRegistry(localURL(skillsHostPort, "/capabilities"), skills.LocalEmbed)
	if err := registry.Reload(ctx); err != nil {
		logger.Warn("initial skill catalog reload failed, starting with an empty catalog", "error", err)
	}

	convStore := conversation.NewMemoryStore()

	engine := orakle.NewEngine(
		registry,
		primary,
		primaryModel,
		matcherProvider,
		matcherModel,
		matcher.Config{
			TopK:            cfg.Matcher.TopK,
			SimilarityFloor: cfg.Matcher.SimilarityFloor,
			ConfidenceFloor: cfg.Matcher.ConfidenceFloor,
		},
		interpreter,
		interpreterModel,
		localURL(skillsHostPort, ""),
		convStore,
		20,
		cfg.Timeouts.SkillCall,
		logger,
	)

	srv := &orakle.Server{
		Engine:         engine,
		Config:         store,
		Registry:       registry,
		Supervisor:     sup,
		BridgeBaseURL:  localURL(bridgePort, ""),
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	}
	router := orakle.NewServerRouter(srv)

	httpServer := &http.Server{
		Addr:    envOr("ORAKLE_ADDR", ":8900"),
		Handler: router,
	}

	go pollHealth(ctx, sup, logger)

	go func() {
		logger.Info("starting façade", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("façade server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.GracefulShutdown)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	sup.StopAll(false, cfg.Timeouts.GracefulShutdown)
}

func pollHealth(ctx context.Context, sup *supervisor.Supervisor, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sup.CheckHealth(ctx)
		case change := <-sup.StateChanges():
			logger.Info("service health changed", "service", change.Service, "health", change.Health)
		}
	}
}

func buildProvider(cfg config.Config, fallbackModel string) (llm.Provider, string, error) {
	if len(cfg.Providers) == 0 {
		return nil, "", errors.New("no LLM providers configured")
	}
	p := cfg.Providers[0]
	model := p.Model
	if model == "" {
		model = fallbackModel
	}
	switch p.Kind {
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: p.APIKey, BaseURL: p.BaseURL}), model, nil
	case "openai", "":
		return openai.NewWithKey(p.APIKey), model, nil
	default:
		return nil, "", errors.New("unsupported provider kind: " + p.Kind)
	}
}

func localURL(port int, path string) string {
	return "http://127.0.0.1:" + strconv.Itoa(port) + path
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"mcprelay/internal/domain"
	"mcprelay/internal/infra/backend"
	"mcprelay/internal/infra/catalog"
	"mcprelay/internal/infra/config"
	"mcprelay/internal/infra/gateway"
	"mcprelay/internal/infra/telemetry"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
}

type ValidateConfig struct {
	ConfigPath string
}

type CatalogConfig struct {
	ConfigPath string
	Out        io.Writer
}

func New(logger *zap.Logger) *App {
	return &App{
		logger: logger.Named("app"),
	}
}

// Serve runs the relay: a strictly sequential startup chain, then one stdio
// client connection until the context is canceled. Only configuration and
// primary discovery failures abort; everything after startup is recovered
// per invocation.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	relayCfg, err := config.NewLoader(a.logger).Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	// Deeply nested payloads (large embedded binary content) can exhaust the
	// execution stack; the budget is a configuration concern, not a logic bug.
	if err := applyStackBudget(relayCfg.MaxStackBytes, a.logger); err != nil {
		return err
	}

	table, scoped, err := a.discover(ctx, relayCfg)
	if err != nil {
		return err
	}

	var metrics *telemetry.PrometheusMetrics
	if relayCfg.Observability.ListenAddress != "" {
		metrics = telemetry.NewPrometheusMetrics(nil)
		go func() {
			if err := telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
				Addr: relayCfg.Observability.ListenAddress,
			}, a.logger); err != nil {
				a.logger.Warn("observability server exited", zap.Error(err))
			}
		}()
	}

	client := a.newBackendClient(relayCfg)
	dispatcher := gateway.NewDispatcher(client, metrics, a.logger)
	gw := gateway.New(gateway.Options{
		Table:      table,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     a.logger,
	})

	a.logger.Info("relay ready",
		zap.Bool("scoped", scoped),
		zap.Int("tools", len(table.Tools)),
		zap.Int("resources", len(table.Resources)),
		zap.Int("prompts", len(table.Prompts)),
	)
	return gw.Run(ctx)
}

// Validate loads and validates the configuration without serving.
func (a *App) Validate(cfg ValidateConfig) error {
	relayCfg, err := config.NewLoader(a.logger).Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration valid",
		zap.String("baseURL", relayCfg.BaseURL),
		zap.Bool("scoped", relayCfg.Scoped()),
	)
	return nil
}

// PrintCatalog performs discovery and writes the capability table that would
// be registered, as JSON, without serving.
func (a *App) PrintCatalog(ctx context.Context, cfg CatalogConfig) error {
	relayCfg, err := config.NewLoader(a.logger).Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	table, _, err := a.discover(ctx, relayCfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cfg.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}

// discover runs the startup discovery chain: primary definitions fetch
// (scoped with unscoped fallback, fatal on failure), then per-server
// resources and prompts fetches (each degrades to empty on failure).
func (a *App) discover(ctx context.Context, relayCfg domain.Config) (domain.CapabilityTable, bool, error) {
	client := a.newBackendClient(relayCfg)
	fetcher := backend.NewFetcher(client, a.logger)

	discovery, err := fetcher.FetchDefinitions(ctx, relayCfg.TargetServerID)
	if err != nil {
		return domain.CapabilityTable{}, false, err
	}
	a.logger.Info("definitions fetched",
		telemetry.EventField(telemetry.EventDiscovery),
		zap.Int("servers", len(discovery.Servers)),
		zap.Bool("scoped", discovery.Scoped),
	)

	servers := discovery.Servers
	for i := range servers {
		if len(servers[i].Resources) == 0 {
			servers[i].Resources = fetcher.FetchResources(ctx, servers[i].ID)
		}
		if len(servers[i].Prompts) == 0 {
			servers[i].Prompts = fetcher.FetchPrompts(ctx, servers[i].ID)
		}
	}

	builder := catalog.NewBuilder(discovery.Scoped, a.logger)
	return builder.Build(servers), discovery.Scoped, nil
}

// maxStackCeiling is the runtime's hard per-goroutine limit on 64-bit
// platforms; SetMaxStack silently caps above it.
const maxStackCeiling int64 = 32 << 30

func applyStackBudget(bytes int, logger *zap.Logger) error {
	if int64(bytes) > maxStackCeiling {
		return domain.E(domain.CodeStackOverflow, "app.Serve",
			fmt.Sprintf("maxStackBytes %d exceeds the runtime ceiling of %d", bytes, maxStackCeiling), nil)
	}
	debug.SetMaxStack(bytes)
	// A genuine overflow is a fatal runtime error the process cannot catch;
	// this line puts the configured budget next to it in the log stream.
	logger.Info("execution stack budget set",
		zap.Int("maxStackBytes", bytes),
		zap.String("hint", "a fatal goroutine stack overflow means maxStackBytes needs raising"),
	)
	return nil
}

func (a *App) newBackendClient(relayCfg domain.Config) *backend.Client {
	return backend.NewClient(backend.ClientOptions{
		BaseURL:     relayCfg.BaseURL,
		APIKey:      relayCfg.APIKey,
		ToolTimeout: relayCfg.ToolTimeout(),
		HTTPClient:  &http.Client{},
		Logger:      a.logger,
	})
}

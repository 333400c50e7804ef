package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nulzo/prism-console/cmd"
	"github.com/nulzo/prism-console/internal/adminapi"
	"github.com/nulzo/prism-console/internal/cli"
	"github.com/nulzo/prism-console/internal/config"
	"github.com/nulzo/prism-console/internal/core/services"
	"github.com/nulzo/prism-console/internal/store/cache"
	"go.uber.org/zap"
)

type app struct {
	cfg        *config.Config
	client     *adminapi.Client
	rules      *services.RuleController
	models     *services.ModelCache
	guardrails *services.GuardrailEditor
	notifier   *cli.Notifier
	out        io.Writer
	logger     *zap.Logger
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*app, error) {
	client := adminapi.New(adminapi.Options{
		BaseURL:           cfg.API.BaseURL,
		Token:             cfg.API.Token,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Logger:            logger,
	})
	notifier := cli.NewNotifier(out)

	a := &app{
		cfg:      cfg,
		client:   client,
		notifier: notifier,
		out:      out,
		logger:   logger,
	}

	cacheOpts := []services.ModelCacheOption{services.WithCacheLogger(logger)}
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// the cache is an optimisation, run without it
			logger.Warn("Shared model cache unavailable", zap.Error(err))
		} else {
			cacheOpts = append(cacheOpts, services.WithSharedCache(rc, cfg.Redis.TTL))
			a.closers = append(a.closers, rc.Close)
		}
	}
	a.models = services.NewModelCache(client, cacheOpts...)

	a.rules = services.NewRuleController(client, client,
		services.WithNotifier(notifier),
		services.WithLogger(logger),
		services.WithScenario(cfg.Rules.Scenario),
		services.WithReconcileDelay(cfg.Rules.ReconcileDelay),
	)
	a.guardrails = services.NewGuardrailEditor(client, notifier, logger)
	return a, nil
}

func (a *app) close() {
	a.rules.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
}

// checkServer refuses to talk to admin servers older than the minimum
// supported version. Unparsable versions (dev builds) only warn.
func (a *app) checkServer(ctx context.Context, stderr io.Writer) error {
	status, err := a.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("admin server unreachable at %s: %w", a.cfg.API.BaseURL, err)
	}

	ok, err := cmd.CheckServerVersion(status.Version)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintf(stderr, "%s admin server reports unknown version %q\n", cli.WarningSign(), status.Version)
	}

	a.logger.Debug("Admin server", zap.String("version", status.Version), zap.Int("providers", status.ProvidersTotal))
	return nil
}

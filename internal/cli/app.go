package cli

import (
	"context"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
	"budget/internal/session"
)

// App holds everything one command invocation needs.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Session   *session.Session
	Cache     interface{ Purge() }
	Publisher *amqp.Client

	backend  *backend.Result
	cacheMgr *cache.Manager
}

// openApp wires config, gateway, cache cleanup, change publisher and the
// session. A non-nil gw replaces the configured backend.
func openApp(ctx context.Context, logger *log.Logger, backendOverride string, gw gateway.Gateway) (*App, error) {
	cfg, err := LoadAndValidateConfig(logger)
	if err != nil {
		return nil, err
	}
	if backendOverride != "" {
		cfg.Backend = backendOverride
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	app := &App{Config: cfg, Logger: logger}
	if gw == nil {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, err
		}
		res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
		if err != nil {
			return nil, fmt.Errorf("create backend: %w", err)
		}
		app.backend = res
		gw = res.Gateway
		if res.Cache != nil {
			app.Cache = res.Cache
			if cfg.CacheTTL > 0 {
				app.cacheMgr = cache.NewManager(logger.Logger)
				app.cacheMgr.Register(res.Cache)
				app.cacheMgr.StartCleanup(cfg.CacheTTL)
			}
		}
	}

	opts := session.Options{
		Debounce:       cfg.Debounce,
		RequestTimeout: cfg.RequestTimeout,
		TrendPeriod:    core.Period(cfg.TrendPeriod),
		TrendDays:      cfg.TrendDays,
		Logger:         logger,
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Change feed unavailable", log.FieldError, err)
		} else {
			app.Publisher = client
			opts.Publisher = client
		}
	}

	app.Session = session.New(gw, opts)
	return app, nil
}

// Close releases the session, the change feed and the backend.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Session.Close()
	if a.cacheMgr != nil {
		a.cacheMgr.Stop()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	return a.backend.Close()
}

// load reloads the session and returns its state.
func (a *App) load(ctx context.Context) (session.State, error) {
	if err := a.Session.Reload(ctx); err != nil {
		return session.State{}, err
	}
	return a.Session.Snapshot(), nil
}

// scopeTo applies an account scope before loading. An empty id keeps all
// accounts.
func (a *App) scopeTo(id string) error {
	if id == "" {
		return nil
	}
	return a.Session.SetAccountScope(id)
}

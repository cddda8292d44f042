// Package app wires the application's components together with fx.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"

	"who-is-live/internal/adapter"
	"who-is-live/internal/cache"
	"who-is-live/internal/config"
	"who-is-live/internal/domain"
	"who-is-live/internal/handler"
	"who-is-live/internal/history"
	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
	"who-is-live/internal/repository/sqlite"
	"who-is-live/internal/service"
	"who-is-live/internal/task"
)

const (
	shutdownTimeout = 30 * time.Second
	// cycleSlack is added to the adapter timeout to bound a whole refresh cycle
	cycleSlack = 5 * time.Second
)

// Module provides every component of the server
var Module = fx.Options(
	fx.Provide(config.Load),
	fx.Provide(NewLogger),
	fx.Provide(NewRoster),
	fx.Provide(NewDatabase),
	fx.Provide(NewHistoryState),
	fx.Provide(NewMetrics),
	fx.Provide(NewAvatarCache),
	fx.Provide(NewAdapters),
	fx.Provide(NewAggregator),
	fx.Provide(NewRefreshService),
	fx.Provide(func(s *service.RefreshService) domain.StatusService { return s }),
	fx.Provide(NewRefresher),
	fx.Provide(NewLookupService),
	fx.Provide(handler.NewAPIHandler),
	fx.Provide(NewHTTPServer),
	fx.Invoke(Register),
)

// NewLogger creates the application logger and installs it globally
func NewLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	logger.SetGlobalLogger(log)
	return log
}

// NewRoster loads the streamer roster
func NewRoster(cfg *config.Config, log *logger.Logger) (*config.Roster, error) {
	return config.LoadRoster(cfg.RosterPath, log)
}

// NewDatabase opens and migrates the SQLite database
func NewDatabase(cfg *config.Config) (*sqlite.DB, error) {
	db, err := sqlite.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := sqlite.Migrate(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// NewHistoryState exposes the durable history over the SQLite store
func NewHistoryState(db *sqlite.DB, log *logger.Logger) *history.State {
	repo := sqlite.NewHistoryRepository(db)
	if n, err := repo.Count(context.Background()); err == nil {
		log.Info("history loaded", map[string]interface{}{"entries": n})
	}
	return history.New(repo, log.WithField("component", "history"))
}

// NewMetrics creates the metrics recorder
func NewMetrics(cfg *config.Config) metrics.Recorder {
	return metrics.New(cfg.MetricsEnabled)
}

// NewAvatarCache creates the in-memory avatar cache
func NewAvatarCache() *cache.Cache {
	return cache.New(cache.DefaultSize, 24*time.Hour)
}

// NewAdapters builds one adapter per platform. Twitch is left out when no
// credentials are configured.
func NewAdapters(cfg *config.Config, roster *config.Roster, state *history.State, avatars *cache.Cache, log *logger.Logger) []domain.PlatformAdapter {
	opts := func(p domain.Platform) []adapter.Option {
		return []adapter.Option{
			adapter.WithRequestTimeout(cfg.RequestTimeout),
			adapter.WithConcurrency(cfg.FetchConcurrency),
			adapter.WithLogger(log.WithField("platform", string(p))),
		}
	}

	var probe adapter.YouTubeProbe
	if cfg.YouTubeAPIKey != "" {
		probe = adapter.NewAPIProbe(cfg.YouTubeAPIKey, avatars, opts(domain.PlatformYouTube)...)
	} else {
		probe = adapter.NewPageProbe(opts(domain.PlatformYouTube)...)
	}

	adapters := []domain.PlatformAdapter{
		adapter.NewKickAdapter(config.Identities(roster.Kick), roster.KickKnownBanned, state, opts(domain.PlatformKick)...),
		adapter.NewYouTubeAdapter(config.Identities(roster.YouTube), roster.ScheduledKeywords, probe, opts(domain.PlatformYouTube)...),
	}
	if cfg.TwitchEnabled() {
		adapters = append(adapters, adapter.NewTwitchAdapter(config.Identities(roster.Twitch), cfg.TwitchClientID, cfg.TwitchSecret, opts(domain.PlatformTwitch)...))
	}
	adapters = append(adapters, adapter.NewDLiveAdapter(config.Identities(roster.DLive), opts(domain.PlatformDLive)...))

	return adapters
}

// NewAggregator creates the adapter aggregator
func NewAggregator(cfg *config.Config, adapters []domain.PlatformAdapter, rec metrics.Recorder, log *logger.Logger) *service.Aggregator {
	return service.NewAggregator(adapters, cfg.AdapterTimeout, rec, log)
}

// NewRefreshService creates the refresh service
func NewRefreshService(cfg *config.Config, agg *service.Aggregator, state *history.State, rec metrics.Recorder, log *logger.Logger) *service.RefreshService {
	return service.NewRefreshService(agg, state, cfg.AdapterTimeout+cycleSlack, rec, log)
}

// NewLookupService creates the on-demand single streamer lookup
func NewLookupService(cfg *config.Config, adapters []domain.PlatformAdapter, log *logger.Logger) domain.StreamerLookup {
	return service.NewLookupService(adapters, cfg.RequestTimeout, log.WithField("component", "lookup"))
}

// NewRefresher creates the periodic refresher
func NewRefresher(cfg *config.Config, svc domain.StatusService, log *logger.Logger) *task.Refresher {
	return task.NewRefresher(svc, cfg.RefreshInterval, log.WithField("component", "refresher"))
}

// NewHTTPServer creates the HTTP server
func NewHTTPServer(cfg *config.Config, h *handler.APIHandler, rec metrics.Recorder, log *logger.Logger) *http.Server {
	router := handler.NewRouter(h, rec, handler.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
	}, log)

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AdapterTimeout + cycleSlack + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Register hooks the server, refresher and database into the fx lifecycle.
// On stop the running refresh cycle is drained before the database closes.
func Register(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, srv *http.Server, refresher *task.Refresher, refreshSvc *service.RefreshService, db *sqlite.DB, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg.LogConfiguration(log)

			go func() {
				log.Info("server starting", map[string]interface{}{"addr": srv.Addr})
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("server failed", map[string]interface{}{"error": err.Error()})
					shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return refresher.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server", nil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			refresher.Stop()
			// The database must outlive the last cycle's writes
			if err := refreshSvc.Drain(shutdownCtx); err != nil {
				log.Warn("refresh cycle still running at shutdown", map[string]interface{}{"error": err.Error()})
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("server shutdown failed", map[string]interface{}{"error": err.Error()})
				return err
			}

			if err := db.Close(); err != nil {
				log.Warn("error closing database connection", map[string]interface{}{"error": err.Error()})
			}
			log.Info("server stopped gracefully", nil)
			return nil
		},
	})
}

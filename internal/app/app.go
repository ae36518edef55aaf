package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"ace-status/internal/config"
	"ace-status/internal/db"
	"ace-status/internal/feed"
	"ace-status/internal/metrics"
	"ace-status/internal/notify"
	"ace-status/internal/status"
)

// App holds the wired components shared by the CLI and the HTTP service.
type App struct {
	Cache   *feed.Cache
	Service *status.Service
	Options status.Options

	closers []func()
}

// New wires sources, cache, sink and service from cfg. mcol may be nil.
// Sinks touch the network only when sending.
func New(ctx context.Context, cfg *config.Config, mcol *metrics.Collector) (*App, error) {
	a := &App{
		Options: status.Options{Destination: cfg.Destination, StopFilter: cfg.StopFilter},
	}

	src, err := a.source(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = feed.NewCache(src, cfg.CacheTTL, feed.WithMetrics(cacheMetrics(mcol)))

	a.Service = status.NewService(a.Cache, a.sink(cfg, mcol), statusMetrics(mcol))
	return a, nil
}

func (a *App) source(ctx context.Context, cfg *config.Config) (feed.Source, error) {
	var src feed.Source
	if cfg.Offline {
		seed, err := feed.NewSeed()
		if err != nil {
			return nil, err
		}
		log.Printf("offline mode: serving feeds from seed fixtures")
		src = seed
	} else {
		src = feed.NewClient(cfg.FeedURL, cfg.HTTPTimeout)
	}

	if cfg.StopsDatabaseURL == "" {
		return src, nil
	}
	conn, err := openStopsDB(ctx, cfg.StopsDatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	log.Printf("serving %s from stops database", feed.FeedStops)
	return db.NewStopSource(conn, src), nil
}

func openStopsDB(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("stops db open: %w", err)
	}
	if err := db.Ping(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("stops db ping: %w", err)
	}
	return conn, nil
}

func (a *App) sink(cfg *config.Config, mcol *metrics.Collector) notify.Sink {
	switch cfg.NotifySink {
	case config.SinkNATS:
		s := notify.NewNATSSink(cfg.NATSURL, cfg.NATSSubject, sinkMetrics(mcol))
		a.closers = append(a.closers, s.Close)
		return s
	default:
		return notify.NewWebhook(cfg.WebhookURL, cfg.NotifyEvent, cfg.NotifyKey, cfg.HTTPTimeout)
	}
}

// Close releases connections opened by New, most recent first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// The helpers below keep a nil *Collector from turning into a non-nil
// interface value.

func cacheMetrics(c *metrics.Collector) feed.CacheMetrics {
	if c == nil {
		return nil
	}
	return c
}

func statusMetrics(c *metrics.Collector) status.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func sinkMetrics(c *metrics.Collector) notify.SinkMetrics {
	if c == nil {
		return nil
	}
	return c
}

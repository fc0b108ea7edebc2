// Package app assembles the cache layer, the REST client, the map bridge and
// the telemetry feed into a running service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dispatchkit/dispatchboard/config"
	"github.com/dispatchkit/dispatchboard/core/mapsync"
	coremetrics "github.com/dispatchkit/dispatchboard/core/metrics"
	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/orders"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/core/track"
	"github.com/dispatchkit/dispatchboard/core/users"
	"github.com/dispatchkit/dispatchboard/infra/logger"
	"github.com/dispatchkit/dispatchboard/infra/metrics"
	"github.com/dispatchkit/dispatchboard/infra/rest"
	"github.com/dispatchkit/dispatchboard/infra/telemetry"
)

// Service orchestrates the dashboard data layer.
type Service struct {
	Orders *orders.API
	Users  *users.API
	Bridge *mapsync.Bridge
	Tracks track.Store

	cache       *query.Cache
	feed        *telemetry.Manager
	cfg         *config.Config
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration. The surface may be nil when
// the service runs without a map view.
func New(cfg *config.Config, surface mapsync.Surface) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	client := rest.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	cache := query.New(logger.New("query-cache"), sink)
	pipe := mutation.New(cache, logger.New("mutation"), sink)

	svc := &Service{
		Orders:      orders.New(client, cache, pipe, logger.New("orders")),
		Users:       users.New(client, cache, pipe, logger.New("users")),
		Tracks:      track.NewMemoryStore(0),
		cache:       cache,
		cfg:         cfg,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	if surface != nil {
		svc.Bridge = mapsync.NewBridge(surface, mapsync.Options{
			FitPadding:  cfg.Map.FitPadding,
			FitMaxZoom:  cfg.Map.FitMaxZoom,
			FitDuration: time.Duration(cfg.Map.FitDurationMS) * time.Millisecond,
		}, logger.New("mapsync"))
	}

	if cfg.Telemetry.Enabled {
		feed, err := telemetry.NewManager(cfg.Telemetry, svc.Tracks, svc.Bridge)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		svc.feed = feed
	}
	return svc, nil
}

// Run starts the background refresh loop and blocks until the context is
// cancelled. The expanded order list is polled and pushed to the map bridge.
func (s *Service) Run(ctx context.Context) error {
	s.cache.Subscribe(orders.KeyExpandedOrders)
	defer s.cache.Unsubscribe(orders.KeyExpandedOrders)

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if err := s.refresh(ctx); err != nil {
		s.log.Errorf("initial refresh: %v", err)
	}

	ticker := time.NewTicker(time.Duration(s.cfg.API.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.log.Errorf("refresh: %v", err)
			}
		}
	}
}

// refresh forces both list slots through the network so server-side changes
// made by other dashboards show up, then pushes the result to the bridge.
func (s *Service) refresh(ctx context.Context) error {
	raw, err := s.cache.Refetch(ctx, orders.KeyExpandedOrders)
	if err != nil {
		return err
	}
	expanded, _ := raw.([]model.ExpandedOrder)
	if s.Bridge != nil {
		s.Bridge.Sync(expanded)
	}
	raw, err = s.cache.Refetch(ctx, orders.KeyDrivers)
	if err != nil {
		return err
	}
	cached, _ := raw.([]model.Driver)
	// annotate a copy: the cached slice belongs to the slot and must only
	// change through fetches and mutations
	drivers := make([]model.Driver, len(cached))
	copy(drivers, cached)
	for i := range drivers {
		if tr, ok := s.Tracks.Get(drivers[i].ID); ok {
			drivers[i].GeoJSON = tr.Telemetry()
		}
	}
	if s.Bridge != nil {
		s.Bridge.SyncDrivers(drivers)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.feed != nil {
		s.feed.Disconnect()
	}
	s.cache.Close()
	return nil
}

// Package app wires the configured components into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yaswanthhh/ev-charge-optimizer/api"
	"github.com/yaswanthhh/ev-charge-optimizer/config"
	"github.com/yaswanthhh/ev-charge-optimizer/core/dispatch"
	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	corelogger "github.com/yaswanthhh/ev-charge-optimizer/core/logger"
	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	coremon "github.com/yaswanthhh/ev-charge-optimizer/core/monitoring"
	"github.com/yaswanthhh/ev-charge-optimizer/core/optimizer"
	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
	"github.com/yaswanthhh/ev-charge-optimizer/core/station"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
	inframetrics "github.com/yaswanthhh/ev-charge-optimizer/infra/metrics"
	inframon "github.com/yaswanthhh/ev-charge-optimizer/infra/monitoring"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/mqtt"
	_ "github.com/yaswanthhh/ev-charge-optimizer/infra/runstore"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/ws"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

// Service owns the station transports, the optimizer and the HTTP server.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	registry  *station.Registry
	ledger    *station.Ledger
	optimizer *optimizer.Service
	store     runs.Store
	sink      coremetrics.MetricsSink
	bus       *eventbus.Bus[events.Event]
	bridge    *mqtt.Bridge
	handler   http.Handler
	logCloser io.Closer
}

// LoggerOptions converts the logging section into logger options.
func LoggerOptions(c config.LoggingConfig) logger.Options {
	return logger.Options{
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// New creates a Service from the configuration. Every component is built
// before anything starts listening.
func New(cfg *config.Config) (*Service, error) {
	logCloser, err := logger.Setup(LoggerOptions(cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logg := logger.New("service")

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		// monitoring is optional, the service runs without it
		logg.Errorf("sentry disabled: %v", err)
		mon = coremon.NopMonitor{}
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runs.Open(cfg.Store.Module())
	if err != nil {
		_ = coremetrics.CloseSink(sink)
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		log:       logg,
		registry:  station.NewRegistry(),
		ledger:    station.NewLedgerSize(cfg.Planner.MaxConnectors),
		store:     store,
		sink:      sink,
		bus:       eventbus.New[events.Event](),
		logCloser: logCloser,
	}
	if rec, ok := sink.(coremetrics.StationRecorder); ok {
		s.registry.SetObserver(func(n int) {
			if err := rec.RecordStationCount(n); err != nil {
				logg.Warnf("record station count: %v", err)
			}
		})
	}

	coord := dispatch.NewCoordinator(s.registry, s.ledger, cfg.Dispatch, logger.New("coordinator"))
	coord.SetEventBus(s.bus)
	s.optimizer = optimizer.NewService(
		cfg.Planner.Defaults(cfg.Dispatch.DefaultChargerID),
		cfg.Dispatch.ProfileOptions(),
		coord, store, sink, logger.New("optimizer"),
	)
	s.optimizer.SetEventBus(s.bus)

	stations := ws.NewHandler(s.registry, s.ledger, ws.Options{WriteTimeout: cfg.Dispatch.SendTimeout()})
	stations.SetEventBus(s.bus)

	if cfg.MQTT.Enabled {
		bridge, err := mqtt.NewBridge(cfg.MQTT, s.registry, s.ledger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
		bridge.SetEventBus(s.bus)
		s.bridge = bridge
	}

	var metricsHandler http.Handler
	if cfg.Metrics.HasSink("prometheus") {
		metricsHandler = promhttp.Handler()
	}
	s.handler = api.NewRouter(s.optimizer, api.Options{
		AuthToken: cfg.Server.AuthToken,
		Metrics:   metricsHandler,
		Stations:  stations,
		Connected: s.registry.IDs,
		Logger:    logger.New("api"),
	})
	return s, nil
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler { return s.handler }

// Optimizer returns the optimizer operations.
func (s *Service) Optimizer() *optimizer.Service { return s.optimizer }

// Run serves HTTP until ctx is cancelled or a listener fails.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		s.logEvents(ctx)
		return nil
	})
	g.Go(func() error {
		s.log.Infof("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
		defer cancel()
		// station sockets are hijacked and not tracked by Shutdown
		s.registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error {
			return inframetrics.StartPromServer(ctx, addr)
		})
	}
	return g.Wait()
}

// logEvents writes run and station events to the service log.
func (s *Service) logEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case events.RunEvent:
				fields := map[string]any{
					"run_id":      e.RunID,
					"stored_id":   e.StoredID,
					"charger_id":  e.ChargerID,
					"duration_ms": e.Duration.Milliseconds(),
				}
				for status, n := range e.Counts {
					fields[string(status)] = n
				}
				if e.Err != nil {
					fields["error"] = e.Err.Error()
					corelogger.Errorw(s.log, "run failed", fields)
				} else {
					corelogger.Infow(s.log, "run finished", fields)
				}
			case events.StationEvent:
				state := "disconnected"
				if e.Connected {
					state = "connected"
				}
				s.log.Debugf("station %s %s over %s", e.StationID, state, e.Transport)
			}
		}
	}
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.registry.CloseAll()
	s.ledger.Close()
	s.bus.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := coremetrics.CloseSink(s.sink); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	coremon.Flush(2 * time.Second)
	if s.logCloser != nil {
		if err := s.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

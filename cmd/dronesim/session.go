// cmd/dronesim/session.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/engine"
	"github.com/opd-ai/go-dronesim/pkg/event"
	"github.com/opd-ai/go-dronesim/pkg/health"
	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/network"
	"github.com/opd-ai/go-dronesim/pkg/render"
	"github.com/opd-ai/go-dronesim/pkg/telemetry"
)

const maxHeapMB = 1024

// session owns one simulator and the services around it.
type session struct {
	ctx    context.Context
	logger *logging.Logger
	cfg    *config.Config
	sim    *engine.Simulator
	relay  *telemetry.Relay

	servers []*http.Server
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	logger := logging.NewLogger()
	ctx = logging.WithSessionID(ctx, "")

	bus := event.NewEventBus()
	bus.Subscribe(event.KeyTransition, func(e event.Event) {
		if k, ok := e.(*event.KeyEvent); ok && !k.Mapped {
			logger.Debug(ctx, "ignoring unmapped key", "code", k.Code)
		}
	})
	bus.Subscribe(event.RegimeChanged, func(e event.Event) {
		if r, ok := e.(*event.RegimeEvent); ok {
			logger.Debug(ctx, "axis regime changed", "frame", r.Frame, "axis", r.Axis, "from", r.From, "to", r.To)
		}
	})

	sim, err := engine.New(cfg, engine.WithLogger(logger), engine.WithEventBus(bus), engine.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	relay, err := telemetry.NewRelay(time.Duration(cfg.Telemetry.IntervalMS)*time.Millisecond, logger, nil)
	if err != nil {
		return nil, err
	}

	s := &session{ctx: ctx, logger: logger, cfg: cfg, sim: sim, relay: relay}
	checker := health.NewChecker()
	checker.Add(health.NewSimulationCheck(sim, time.Duration(cfg.Health.StaleAfterMS)*time.Millisecond))
	checker.Add(health.NewMemoryCheck(maxHeapMB, nil))

	if mq := cfg.Telemetry.MQTT; mq.Broker != "" {
		breaker := network.NewBreaker("mqtt", cfg.Telemetry.Breaker, logger)
		var pub *telemetry.MQTTPublisher
		err := breaker.ExecuteWithRetry(ctx, func() error {
			var dialErr error
			pub, dialErr = telemetry.DialMQTT(ctx, mq, breaker, logger)
			return dialErr
		})
		if err != nil {
			logger.Warn(ctx, "MQTT telemetry disabled", "broker", mq.Broker, "error", err)
		} else {
			relay.Add("mqtt", pub)
			logger.Info(ctx, "MQTT telemetry enabled", "broker", mq.Broker, "topic", pub.Topic())
			checker.Add(health.NewBreakerCheck(breaker))
		}
	}

	if addr := cfg.Telemetry.WebSocketAddr; addr != "" {
		hub := telemetry.NewHub(logger, network.NewLimiter(cfg.Telemetry.ConnectsPerMinute, time.Minute))
		relay.Add("websocket", hub)
		s.serve(addr, "telemetry", hub.Handler())
	}
	if addr := cfg.Health.Addr; addr != "" {
		s.serve(addr, "health", checker.Handler())
	}
	return s, nil
}

// serve runs handler on addr until close.
func (s *session) serve(addr, name string, handler http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.servers = append(s.servers, srv)
	go func() {
		s.logger.Info(s.ctx, "listening", "server", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(s.ctx, "server stopped", err, "server", name)
		}
	}()
}

// onFrame feeds telemetry after each rendered frame.
func (s *session) onFrame(render.Scene) {
	sample := telemetry.FromSnapshot(logging.GetSessionID(s.ctx), s.sim.Snapshot())
	s.relay.Offer(s.ctx, sample, time.Now())
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn(s.ctx, "server shutdown", "addr", srv.Addr, "error", err)
		}
	}
	if err := s.relay.Close(); err != nil {
		s.logger.Warn(s.ctx, "closing telemetry", "error", err)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/flow"
	"github.com/google/tsunami-security-scanner-callback-server/config"
	"github.com/google/tsunami-security-scanner-callback-server/internal/monitoring"
	"github.com/google/tsunami-security-scanner-callback-server/internal/polling"
	"github.com/google/tsunami-security-scanner-callback-server/internal/recording"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"github.com/pudottapommin/golib/http/middleware/compressor"
	"github.com/pudottapommin/golib/http/middleware/logger"
	"github.com/pudottapommin/golib/http/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type runner struct {
	name     string
	addr     string
	run      func(addr string) error
	shutdown func(ctx context.Context) error
}

// App runs the polling server and every enabled recording and metrics
// server on top of a single interaction store.
type App struct {
	ctx     context.Context
	obs     monitoring.Observer
	l       *slog.Logger
	runners []runner
}

func New(ctx context.Context, cfg *config.Config, store storage.Store, l *slog.Logger) (*App, error) {
	a := &App{ctx: ctx, obs: monitoring.NoOp{}, l: l}

	if port := cfg.Monitoring.MetricsPort; port != 0 {
		reg := prometheus.NewRegistry()
		p, err := monitoring.NewPrometheus(reg)
		if err != nil {
			return nil, fmt.Errorf("app: failed to register metrics: %w", err)
		}
		a.obs = p

		s := a.httpServer(0)
		s.E().Handle("/metrics", monitoring.Handler(reg), http.MethodGet)
		a.addHTTP("metrics", port, s)
	}

	{
		s := a.httpServer(cfg.Polling.WorkerPoolSize)
		polling.NewHandlers(store, a.obs, l).AddHandlers(s.E())
		s.Use(compressor.MustNew())
		a.addHTTP("polling", cfg.Polling.Port, s)
	}

	if c := cfg.Recording.HTTP; c.Enabled {
		s := a.httpServer(c.WorkerPoolSize)
		recording.NewHTTPHandler(store, a.obs, l).AddHandlers(s.E())
		a.addHTTP("http recording", c.Port, s)
	}

	if c := cfg.Recording.DNS; c.Enabled {
		h, err := recording.NewDNSHandler(store, cfg.Common.Domain, cfg.Common.ExternalIP, a.obs, l)
		if err != nil {
			return nil, err
		}
		s := server.NewDNS(ctx, server.DNSOptions{
			Endpoint: recording.Endpoint,
			Workers:  c.WorkerPoolSize,
			Observer: a.obs,
			Logger:   l.With("server", "dns recording"),
		}, h.Handle)
		a.runners = append(a.runners, runner{
			name:     "dns recording",
			addr:     config.ListenAddr(c.Port),
			run:      s.Run,
			shutdown: s.Shutdown,
		})
	}

	return a, nil
}

func (a *App) httpServer(workers int64) *server.Server {
	s := server.New(flow.New())
	s.Use(
		requestid.New().Handler,
		logger.New(logger.WithLogger(a.l, "[HTTP]")).Handler,
		server.Limit(workers),
	)
	return s
}

func (a *App) addHTTP(name string, port int, s *server.Server) {
	a.runners = append(a.runners, runner{
		name:     name,
		addr:     config.ListenAddr(port),
		run:      s.Run,
		shutdown: s.Shutdown,
	})
}

// Run serves until the context given to New is cancelled or a server fails,
// then shuts every server down.
func (a *App) Run() error {
	g, ctx := errgroup.WithContext(a.ctx)
	for _, r := range a.runners {
		g.Go(func() error {
			a.l.Info("server started", "server", r.name, "address", r.addr)
			if err := r.run(r.addr); err != nil {
				return fmt.Errorf("app: %s server: %w", r.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for _, r := range a.runners {
		if err := r.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: failed to shut down %s server: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

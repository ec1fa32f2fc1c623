package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinSignal/internal/handler/ws"
	mid "FinSignal/internal/middleware"
	"FinSignal/internal/usecase"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
)

const persistTimeout = 5 * time.Second

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engines    *usecase.EngineRegistry
	emitter    *mid.SignalEmitter
	scanner    *usecase.Scanner
	consumer   *pkgkafka.Consumer
	hub        *ws.Hub
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engines *usecase.EngineRegistry,
	emitter *mid.SignalEmitter,
	scanner *usecase.Scanner,
	consumer *pkgkafka.Consumer,
	hub *ws.Hub,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		engines:    engines,
		emitter:    emitter,
		scanner:    scanner,
		consumer:   consumer,
		hub:        hub,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.start(ctx); err != nil {
		return err
	}

	<-sigCh
	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) start(ctx context.Context) error {
	restoreCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	a.engines.Restore(restoreCtx, a.cfg.Engine.Symbols)
	cancel()

	a.emitter.Start(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	a.scanner.Start(ctx)
	a.log.Info("scanner started",
		applogger.Strings("symbols", a.cfg.Engine.Symbols),
		applogger.Strings("timeframes", a.cfg.Engine.Timeframes),
		applogger.Duration("interval_ms", a.cfg.Engine.ScanInterval))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then drains delivery and saves calibration.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.scanner.Stop(shutdownCtx)

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.hub.Close()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if n := a.emitter.Pending(); n > 0 {
		a.log.Warn("dropping undelivered signals", applogger.Int("pending", n))
	}
	a.emitter.Stop()

	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()
	if err := a.engines.Persist(persistCtx); err != nil {
		a.log.Warn("calibration persist error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

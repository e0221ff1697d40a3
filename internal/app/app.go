package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"blockworld/mobs/internal/ai"
	"blockworld/mobs/internal/config"
	servernet "blockworld/mobs/internal/net"
	"blockworld/mobs/internal/net/ws"
	"blockworld/mobs/internal/sim"
	"blockworld/mobs/internal/store"
	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging"
	loggingSinks "blockworld/mobs/logging/sinks"
)

const (
	shutdownTimeout = 5 * time.Second
	demoFloorRadius = 64
)

// Options carries collaborators that tests or embedders may override.
type Options struct {
	// Output receives diagnostics and console events. Defaults to stderr.
	Output io.Writer
	// World replaces the in-memory demo world.
	World world.World
}

// App is one wired mob simulation server.
type App struct {
	cfg         config.Config
	logger      telemetry.Logger
	router      *logging.Router
	broadcaster *ws.Broadcaster
	engine      *sim.Engine
	store       *store.Store
	handler     nethttp.Handler

	saves   chan snapshotJob
	saverWg sync.WaitGroup
}

type snapshotJob struct {
	tick  uint64
	snaps []ai.Snapshot
}

// Run builds the server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	a, err := New(cfg, Options{})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// New wires every component without starting the loop or the listener.
func New(cfg config.Config, opts Options) (*App, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	zl := telemetry.NewZerolog(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	logger := telemetry.WrapZerolog(zl, zerolog.InfoLevel)

	lib := ai.GlobalLibrary
	if cfg.Library.Path != "" {
		loaded, err := ai.LoadLibrary()
		if err != nil {
			return nil, fmt.Errorf("app: species library: %w", err)
		}
		if err := loaded.LoadDir(cfg.Library.Path); err != nil {
			return nil, fmt.Errorf("app: species library: %w", err)
		}
		lib = loaded
	}
	logger.Printf("species library ready: %v", lib.Names())

	a := &App{cfg: cfg, logger: logger, broadcaster: ws.NewBroadcaster(0, logger)}

	named, err := a.sinks(out)
	if err != nil {
		return nil, err
	}
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.Log.Sinks
	logCfg.MinimumSeverity = logging.ParseSeverity(cfg.Log.Level)
	logCfg.Categories = cfg.Log.Categories
	logCfg.JSON.FilePath = cfg.Log.JSONPath
	if cfg.Log.BufferSize > 0 {
		logCfg.BufferSize = cfg.Log.BufferSize
	}
	logCfg.Fields = map[string]any{"world": cfg.Store.WorldID}
	a.router = logging.NewRouter(nil, logCfg, logger, named)

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		a.router.Close(context.Background())
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	w := opts.World
	if w == nil {
		mem := world.NewMemory()
		mem.FillFloor(-1, demoFloorRadius, "grass_block")
		w = mem
	}

	a.engine = sim.NewEngine(sim.Config{
		TickRate:          cfg.Sim.TickRate,
		CatchupMaxTicks:   cfg.Sim.CatchupMaxTicks,
		Seed:              cfg.Sim.Seed,
		DespawnCheckTicks: cfg.Sim.DespawnCheckTicks,
		MaxMobs:           cfg.Sim.MaxMobs,
		CommandCapacity:   cfg.Sim.CommandCapacity,
		PerActorLimit:     cfg.Sim.PerActorLimit,
	}, sim.Deps{
		Library:   lib,
		World:     w,
		Publisher: a.router,
		Logger:    logger,
		Metrics:   metrics,
	})

	if cfg.Store.Driver != store.DriverNone {
		st, err := store.Open(store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
		if err != nil {
			a.router.Close(context.Background())
			return nil, fmt.Errorf("app: %w", err)
		}
		a.store = st
	}

	a.handler = servernet.NewHTTPHandler(a.engine, servernet.HTTPHandlerConfig{
		Logger:      logger,
		EventsPath:  cfg.Net.EventsPath,
		Broadcaster: a.broadcaster,
		RouterStats: a.router.Stats,
	})
	return a, nil
}

func (a *App) sinks(out io.Writer) ([]logging.NamedSink, error) {
	var named []logging.NamedSink
	for _, name := range a.cfg.Log.Sinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(out)})
		case "json":
			var w io.Writer = struct{ io.Writer }{out}
			if path := a.cfg.Log.JSONPath; path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return nil, fmt.Errorf("app: json sink: %w", err)
				}
				w = f
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, logging.DefaultConfig().JSON.FlushInterval)})
		case "ws":
			named = append(named, logging.NamedSink{Name: name, Sink: a.broadcaster})
		}
	}
	return named, nil
}

// Engine exposes the simulation.
func (a *App) Engine() *sim.Engine { return a.engine }

// Handler exposes the HTTP surface.
func (a *App) Handler() nethttp.Handler { return a.handler }

// Restore loads the last saved state of the configured world. A missing
// world is not an error.
func (a *App) Restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	tick, snaps, err := a.store.LoadSnapshots(ctx, a.cfg.Store.WorldID)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Printf("no saved state for world %s, starting fresh", a.cfg.Store.WorldID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("app: restore: %w", err)
	}
	if err := a.engine.Restore(tick, snaps); err != nil {
		// Partial restores keep every valid mob.
		a.logger.Printf("restore of world %s skipped entries: %v", a.cfg.Store.WorldID, err)
	}
	a.logger.Printf("restored world %s at tick %d with %d mobs", a.cfg.Store.WorldID, tick, a.engine.MobCount())
	return nil
}

// Save persists the current registry synchronously.
func (a *App) Save(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	tick, snaps := a.engine.Snapshot()
	return a.store.SaveSnapshots(ctx, a.cfg.Store.WorldID, tick, snaps)
}

func (a *App) startSaver(ctx context.Context) {
	a.saves = make(chan snapshotJob, 1)
	a.saverWg.Add(1)
	go func() {
		defer a.saverWg.Done()
		for job := range a.saves {
			if err := a.store.SaveSnapshots(ctx, a.cfg.Store.WorldID, job.tick, job.snaps); err != nil {
				a.logger.Printf("periodic save at tick %d failed: %v", job.tick, err)
			}
		}
	}()
}

func (a *App) afterStep(result sim.StepResult) {
	every := uint64(a.cfg.Store.SnapshotEveryTicks)
	if a.saves == nil || every == 0 || result.Tick%every != 0 {
		return
	}
	tick, snaps := a.engine.Snapshot()
	select {
	case a.saves <- snapshotJob{tick: tick, snaps: snaps}:
	default:
		a.logger.Printf("periodic save at tick %d skipped, previous save still running", tick)
	}
}

// Run restores state, drives the simulation and serves HTTP until ctx is
// cancelled, then saves a final snapshot and releases resources.
func (a *App) Run(ctx context.Context) error {
	if err := a.Restore(ctx); err != nil {
		a.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.store != nil {
		a.startSaver(context.WithoutCancel(ctx))
	}

	var srv *nethttp.Server
	serveErr := make(chan error, 1)
	if a.cfg.Net.Addr != "" {
		srv = &nethttp.Server{Addr: a.cfg.Net.Addr, Handler: a.handler}
		a.logger.Printf("server listening on %s", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				serveErr <- err
				cancel()
			}
		}()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.engine.Run(runCtx, sim.Hooks{AfterStep: a.afterStep})
	}()

	<-runCtx.Done()
	<-loopDone

	var runErr error
	select {
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	default:
	}

	shutdownCtx, release := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer release()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("http shutdown: %v", err)
		}
	}
	if a.saves != nil {
		close(a.saves)
		a.saverWg.Wait()
		a.saves = nil
	}
	if err := a.Save(shutdownCtx); err != nil {
		a.logger.Printf("final save failed: %v", err)
	}
	if err := a.close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close releases the router and the store without saving.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.close(ctx)
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.router != nil {
		if err := a.router.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close logging router: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	return errors.Join(errs...)
}

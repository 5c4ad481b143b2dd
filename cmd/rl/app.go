package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/routelens/pkg/config"
	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/journal"
	"github.com/vanderheijden86/routelens/pkg/logging"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/roadnet"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// appOptions selects what openApp sets up beyond config and logging.
type appOptions struct {
	logToFile bool // keep stderr free for the alternate screen
	journal   bool
	bridge    []engine.BridgeOption
}

// app holds everything a command needs once the data files are loaded.
type app struct {
	cfg     config.Config
	log     logging.Logger
	dir     *places.Directory
	network *roadnet.Network
	bridge  *engine.Bridge
	journal *journal.Journal
	closers []io.Closer
}

// loadConfig reads the config file and applies the command-line overrides.
func (g *globalFlags) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFrom(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if g.graph != "" {
		cfg.Graph.Source = g.graph
	}
	if g.places != "" {
		cfg.Places = g.places
	}
	if g.astar {
		cfg.Algorithm = "astar"
	}
	if g.watch {
		cfg.Graph.Watch = true
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

func (g *globalFlags) logger(cfg config.Config, toFile bool) (logging.Logger, io.Closer, error) {
	lc := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if !toFile || cfg.Log.File == "" {
		return logging.NewFromEnv(lc), nil, nil
	}
	f, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	lc.Output = f
	return logging.NewFromEnv(lc), f, nil
}

// openApp loads config, places and the road network. Places and the graph
// load concurrently.
func openApp(ctx context.Context, g *globalFlags, opts appOptions) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	log, logFile, err := g.logger(cfg, opts.logToFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	if logFile != nil {
		a.closers = append(a.closers, logFile)
	}

	a.network = roadnet.New(roadnet.WithK(cfg.Graph.K))
	a.bridge = engine.NewBridge(a.network, opts.bridge...)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		dir, err := places.Load(cfg.Places)
		if err != nil {
			return fmt.Errorf("loading places from %s: %w", cfg.Places, err)
		}
		a.dir = dir
		return nil
	})
	eg.Go(func() error {
		return a.bridge.Initialize(egCtx, cfg.Graph.Source)
	})
	if err := eg.Wait(); err != nil {
		a.Close()
		return nil, err
	}

	nodes, edges := a.network.Stats()
	log.Debug(ctx, "data loaded",
		logging.String("graph", cfg.Graph.Source),
		logging.Int("nodes", nodes),
		logging.Int("edges", edges),
		logging.Int("places", a.dir.Len()))

	if opts.journal && cfg.Journal.IsEnabled() {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Warn(ctx, "journal unavailable", logging.String("path", cfg.Journal.Path), logging.Err(err))
		} else {
			a.journal = j
			a.closers = append(a.closers, j)
		}
	}
	return a, nil
}

// Close releases the journal and log file.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// observer records session events in the journal, if one is open.
func (a *app) observer() controller.Observer {
	if a.journal == nil {
		return nil
	}
	return a.journal.Observer(a.log)
}

func (a *app) reload(ctx context.Context) error {
	if err := a.bridge.Initialize(ctx, a.cfg.Graph.Source); err != nil {
		a.log.Error(ctx, "reloading road network", logging.Err(err))
		return err
	}
	nodes, edges := a.network.Stats()
	a.log.Info(ctx, "road network reloaded", logging.Int("nodes", nodes), logging.Int("edges", edges))
	return nil
}

// view is the configured initial map view.
func (a *app) view() surface.View {
	m := a.cfg.Map
	return surface.View{
		Center:    m.CenterPoint(),
		Zoom:      m.Zoom,
		MinZoom:   m.MinZoom,
		MaxZoom:   m.MaxZoom,
		MaxBounds: m.Bounds(),
		Width:     float64(a.cfg.Snapshot.Width),
		Height:    float64(a.cfg.Snapshot.Height),
	}
}

// newSession returns a session drawing on a private off-screen map sized for
// snapshots.
func (a *app) newSession() (*controller.Session, *surface.Map) {
	v := a.view()
	m := surface.NewMap(v)
	m.SetSize(v.Width, v.Height)
	opts := []controller.Option{controller.WithAStar(a.cfg.UseAStar())}
	if o := a.observer(); o != nil {
		opts = append(opts, controller.WithObserver(o))
	}
	return controller.New(m, a.dir, opts...), m
}

func stdinIsTerminal() bool {
	return isTerminal(os.Stdin)
}

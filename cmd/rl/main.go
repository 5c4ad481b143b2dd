package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/config"
	"github.com/vanderheijden86/routelens/pkg/logging"
	"github.com/vanderheijden86/routelens/pkg/ui"
	"github.com/vanderheijden86/routelens/pkg/version"
	"github.com/vanderheijden86/routelens/pkg/watcher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand and override the config file.
type globalFlags struct {
	configPath string
	graph      string
	places     string
	astar      bool
	watch      bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "rl",
		Short: "routelens: alternative routes and critical points on a road network",
		Long: "rl explores a city road network. Without a subcommand it opens the\n" +
			"interactive map; the subcommands answer single queries for scripts.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), g)
		},
	}
	root.SetVersionTemplate("rl {{ .Version }}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default "+config.ConfigPath()+")")
	pf.StringVar(&g.graph, "graph", "", "GeoJSON road network, overrides graph.source")
	pf.StringVar(&g.places, "places", "", "Named places JSON, overrides places")
	pf.BoolVar(&g.astar, "astar", false, "Use A* instead of Dijkstra")
	pf.BoolVar(&g.watch, "watch", false, "Reload the road network when its file changes")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newRouteCmd(g),
		newCriticalCmd(g),
		newServeCmd(g),
		newHistoryCmd(g),
		newSnapshotCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func runTUI(ctx context.Context, g *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, g, appOptions{logToFile: true, journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := ui.Options{
		Engine:      a.bridge,
		Places:      a.dir,
		View:        a.view(),
		Roads:       a.network.Segments,
		SnapshotDir: a.cfg.Snapshot.Dir,
		AStar:       a.cfg.UseAStar(),
		Observer:    a.observer(),
		Timeout:     30 * time.Second,
	}
	if a.cfg.Graph.Watch {
		w, err := watcher.New(a.cfg.Graph.Source, watcher.WithOnError(func(err error) {
			a.log.Warn(ctx, "watching road network", logging.Err(err))
		}))
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			a.log.Warn(ctx, "live reload disabled", logging.Err(err))
		} else {
			defer w.Stop()
			opts.Watcher = w
			opts.Reload = a.reload
		}
	}

	a.log.Info(ctx, "starting tui",
		logging.String("graph", a.cfg.Graph.Source),
		logging.Int("places", a.dir.Len()))
	if err := runTUIProgram(ui.NewModel(opts)); err != nil {
		return fmt.Errorf("running routelens: %w", err)
	}
	return nil
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set RL_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("RL_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

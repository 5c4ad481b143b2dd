package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/snapshot"
	"github.com/vanderheijden86/routelens/pkg/watcher"
)

// RoutesResultMsg carries the engine's answer to a route request.
type RoutesResultMsg struct {
	Req    controller.RouteRequest
	Result *engine.RouteResult
	Err    error
}

// CriticalResultMsg carries the engine's answer to a critical-point request.
type CriticalResultMsg struct {
	Req    controller.CriticalRequest
	Result *engine.CriticalResult
	Err    error
}

// FileChangedMsg is sent when the road network file changes on disk
type FileChangedMsg struct{}

// GraphReloadedMsg reports the end of a road network reload.
type GraphReloadedMsg struct {
	Err error
}

// SnapshotSavedMsg reports a written map snapshot.
type SnapshotSavedMsg struct {
	Path string
	Err  error
}

// statusClearMsg clears a transient footer message if it is still the one
// identified by seq.
type statusClearMsg struct{ seq int }

// findRoutesCmd runs the route query off the UI goroutine.
func findRoutesCmd(f controller.RouteFinder, req controller.RouteRequest, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := f.FindKShortestRoutes(ctx, req.Query)
		return RoutesResultMsg{Req: req, Result: res, Err: err}
	}
}

// criticalCmd runs the critical-point query off the UI goroutine.
func criticalCmd(f controller.CriticalFinder, req controller.CriticalRequest, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := f.CriticalPoints(ctx)
		return CriticalResultMsg{Req: req, Result: res, Err: err}
	}
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func reloadCmd(reload func(context.Context) error, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return GraphReloadedMsg{Err: reload(ctx)}
	}
}

// saveSnapshot writes scene to path before returning, since the scene shares
// its layers with the live map, and reports through a message.
func saveSnapshot(path string, scene snapshot.Scene) tea.Cmd {
	err := snapshot.Save(path, "", scene)
	return func() tea.Msg { return SnapshotSavedMsg{Path: path, Err: err} }
}

func statusClearCmd(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return statusClearMsg{seq: seq} })
}

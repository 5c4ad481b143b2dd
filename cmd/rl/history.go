package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/journal"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		kind    string
		limit   int
		asJSON  bool
		current bool
	)
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Show recent route and critical-point queries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(g)
			if err != nil {
				return err
			}
			defer j.Close()

			switch kind {
			case "", journal.KindRoutes, journal.KindCritical:
			default:
				return fmt.Errorf("invalid --kind %q (expected routes|critical)", kind)
			}
			f := journal.Filter{Kind: kind, Limit: limit}
			if current {
				f.Session = j.Session()
			}
			entries, err := j.Recent(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No queries recorded yet.")
				return nil
			}
			return writeHistoryTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only show routes or critical queries")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&current, "session", false, "Only entries from this process (useful with --json in scripts)")

	cmd.AddCommand(newHistoryStatsCmd(g), newHistoryPruneCmd(g))
	return cmd
}

func newHistoryStatsCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the query journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(g)
			if err != nil {
				return err
			}
			defer j.Close()

			st, err := j.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Journal:   %s\n", j.Path())
			fmt.Fprintf(w, "Total:     %d\n", st.Total)
			fmt.Fprintf(w, "Routes:    %d\n", st.Routes)
			fmt.Fprintf(w, "Critical:  %d\n", st.Critical)
			fmt.Fprintf(w, "Failures:  %d\n", st.Failures)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")
	return cmd
}

func newHistoryPruneCmd(g *globalFlags) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return errors.New("--keep must not be negative")
			}
			j, err := openJournal(g)
			if err != nil {
				return err
			}
			defer j.Close()

			n, err := j.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries, kept the newest %d.\n", n, keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 1000, "Entries to keep")
	return cmd
}

// openJournal opens the configured journal without loading the road network.
func openJournal(g *globalFlags) (*journal.Journal, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Journal.IsEnabled() {
		return nil, errors.New("the journal is disabled (journal.enabled: false)")
	}
	return journal.Open(cfg.Journal.Path)
}

func writeHistoryTable(w io.Writer, entries []journal.Entry) error {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	failed := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF1744"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Time", "Kind", "Algorithm", "Outcome", "Found", "Shortest", "ms", "Summary").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 3 && row >= 0 && row < len(entries) && entries[row].Outcome != journal.OutcomeOK {
				return failed
			}
			return lipgloss.NewStyle()
		})
	for _, e := range entries {
		shortest := "-"
		if e.ShortestM > 0 {
			shortest = fmt.Sprintf("%.2f km", e.ShortestM/1000)
		}
		summary := describeEntry(e)
		t.Row(
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			e.Algorithm,
			e.Outcome,
			strconv.Itoa(e.Found),
			shortest,
			strconv.FormatFloat(e.ExecMs, 'f', -1, 64),
			truncateText(summary, 48),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// describeEntry is the route endpoints for a routes entry, or its error.
func describeEntry(e journal.Entry) string {
	if e.Error != "" {
		return e.Error
	}
	var sum controller.RouteSummary
	if e.Summary != "" && json.Unmarshal([]byte(e.Summary), &sum) == nil && sum.StartLabel != "" {
		return sum.StartLabel + " → " + sum.EndLabel
	}
	return ""
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

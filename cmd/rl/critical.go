package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/controller"
)

func newCriticalCmd(g *globalFlags) *cobra.Command {
	var format, snapshotPath string
	cmd := &cobra.Command{
		Use:   "critical",
		Short: "Find the critical points of the road network",
		Long: "Critical points are intersections whose removal disconnects part of\n" +
			"the network. The report lists how many were found and where.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, appOptions{journal: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s, m := a.newSession()
			defer s.Dispose()

			err = s.DetectCritical(ctx, a.bridge)
			switch {
			case err == nil:
			case controller.IsKind(err, controller.KindNoResults):
				fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(s.Panels().Critical.Lines, " "))
				return nil
			default:
				return err
			}

			if snapshotPath != "" {
				if err := saveSnapshot(snapshotPath, "", m, s, a.network.Segments(), a.cfg.Snapshot.Width, a.cfg.Snapshot.Height); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", snapshotPath)
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), newCriticalOutput(s))
			}
			return writeMarkdown(cmd.OutOrStdout(), criticalMarkdown(newCriticalOutput(s)), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatAuto, "Output format: auto, markdown or json")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Also write the map to this .svg or .png file")
	return cmd
}

func criticalMarkdown(out criticalOutput) string {
	var b strings.Builder
	b.WriteString(out.Report.Markdown())
	b.WriteString("\n| # | Lat | Lon |\n|---|-----|-----|\n")
	for i, p := range out.Points {
		fmt.Fprintf(&b, "| %d | %.6f | %.6f |\n", i+1, p[0], p[1])
	}
	return b.String()
}

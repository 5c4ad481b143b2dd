package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/places"
)

var errMissingPlaces = errors.New("start and end are required (pass two place names, or run on a terminal to pick them)")

func newRouteCmd(g *globalFlags) *cobra.Command {
	var (
		format       string
		snapshotPath string
		highlight    int
	)
	cmd := &cobra.Command{
		Use:   "route [START] [END]",
		Short: "Find the K shortest routes between two places",
		Long: "Find the K shortest routes between two named places or \"lat, lon\"\n" +
			"coordinates and print the route comparison. Missing places are picked\n" +
			"interactively when stdin is a terminal.",
		Example: `  rl route "Clock Tower" "Rajpur Road"
  rl route --astar --format json "30.3165, 78.0322" "ISBT"
  rl route "Clock Tower" "Rajpur Road" --snapshot routes.png`,
		Args: cobra.MaximumNArgs(2),
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

			var start, end string
			if len(args) > 0 {
				start = args[0]
			}
			if len(args) > 1 {
				end = args[1]
			}
			if start == "" || end == "" {
				if !stdinIsTerminal() {
					return errMissingPlaces
				}
				if err := pickPlaces(a.dir, &start, &end); err != nil {
					return err
				}
			}

			s, m := a.newSession()
			defer s.Dispose()
			_ = s.SetStartInput(start)
			_ = s.SetEndInput(end)

			err = s.FindRoutes(ctx, a.bridge)
			switch {
			case err == nil:
			case controller.IsKind(err, controller.KindInvalidSelection):
				return unknownPlaceError(a.dir, start, end)
			case controller.IsKind(err, controller.KindNoResults):
				fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(s.Panels().Route.Lines, " "))
				return nil
			default:
				return err
			}

			if highlight > 0 {
				if err := s.Highlight(highlight - 1); err != nil {
					return fmt.Errorf("--highlight %d: %w", highlight, err)
				}
			}
			if snapshotPath != "" {
				if err := saveSnapshot(snapshotPath, "", m, s, a.network.Segments(), a.cfg.Snapshot.Width, a.cfg.Snapshot.Height); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", snapshotPath)
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), newRouteOutput(s))
			}
			return writeMarkdown(cmd.OutOrStdout(), s.Panels().RouteSummary.Markdown(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatAuto, "Output format: auto, markdown or json")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Also write the map to this .svg or .png file")
	cmd.Flags().IntVar(&highlight, "highlight", 0, "Highlight route N (1-based) in the snapshot")
	return cmd
}

// pickPlaces fills the empty names from a searchable list.
func pickPlaces(dir *places.Directory, start, end *string) error {
	options := huh.NewOptions(dir.Names()...)
	var fields []huh.Field
	if *start == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Start location").
			Options(options...).
			Filtering(true).
			Height(12).
			Value(start))
	}
	if *end == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("End location").
			Options(options...).
			Filtering(true).
			Height(12).
			Value(end))
	}
	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("cancelled")
		}
		return err
	}
	return nil
}

// unknownPlaceError names the input that did not resolve, with suggestions.
func unknownPlaceError(dir *places.Directory, start, end string) error {
	var bad []string
	for _, in := range []string{start, end} {
		if controller.InputKnown(dir, in) {
			continue
		}
		msg := fmt.Sprintf("unknown place %q", in)
		if s := dir.Suggest(in, 3); len(s) > 0 {
			msg += " (did you mean " + strings.Join(s, ", ") + "?)"
		}
		bad = append(bad, msg)
	}
	if len(bad) == 0 {
		return errors.New("please select valid start and end locations")
	}
	return errors.New(strings.Join(bad, "; "))
}

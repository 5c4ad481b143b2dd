package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/controller"
)

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	var (
		start, end    string
		critical      bool
		format        string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "snapshot OUTPUT",
		Short: "Render routes and critical points to an SVG or PNG image",
		Example: `  rl snapshot --start "Clock Tower" --end "Rajpur Road" routes.svg
  rl snapshot --critical network.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (start == "") != (end == "") {
				return errors.New("--start and --end go together")
			}
			if start == "" && !critical {
				return errors.New("nothing to draw: pass --start/--end, --critical or both")
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, appOptions{journal: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s, m := a.newSession()
			defer s.Dispose()

			if start != "" {
				_ = s.SetStartInput(start)
				_ = s.SetEndInput(end)
				if err := s.FindRoutes(ctx, a.bridge); err != nil {
					if controller.IsKind(err, controller.KindInvalidSelection) {
						return unknownPlaceError(a.dir, start, end)
					}
					if !controller.IsKind(err, controller.KindNoResults) {
						return err
					}
				}
			}
			if critical {
				if err := s.DetectCritical(ctx, a.bridge); err != nil && !controller.IsKind(err, controller.KindNoResults) {
					return err
				}
			}

			if width <= 0 {
				width = a.cfg.Snapshot.Width
			}
			if height <= 0 {
				height = a.cfg.Snapshot.Height
			}
			if err := saveSnapshot(args[0], format, m, s, a.network.Segments(), width, height); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start place name or \"lat, lon\"")
	cmd.Flags().StringVar(&end, "end", "", "End place name or \"lat, lon\"")
	cmd.Flags().BoolVar(&critical, "critical", false, "Draw critical points")
	cmd.Flags().StringVar(&format, "format", "", "svg or png (default from the file extension)")
	cmd.Flags().IntVar(&width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Image height in pixels")
	return cmd
}

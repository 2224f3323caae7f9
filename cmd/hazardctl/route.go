package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/spf13/cobra"
)

type routeFlags struct {
	from         string
	to           []string
	avoidDamaged bool
	exclude      []string
	optimize     bool
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	f := &routeFlags{}
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Replay the report file, then plan a hazard-aware route",
		Long: `Replay the report file, then plan a hazard-aware route from --from to
--to. Repeat --to for a multi-stop delivery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoute(cmd, opts, f)
		},
	}
	cmd.Flags().StringVar(&f.from, "from", "", "origin as lat,lon")
	cmd.Flags().StringArrayVar(&f.to, "to", nil, "destination as lat,lon (repeatable)")
	cmd.Flags().BoolVar(&f.avoidDamaged, "avoid-damaged", false, "treat damaged segments as closed")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "segment ids to leave out")
	cmd.Flags().BoolVar(&f.optimize, "optimize", false, "visit stops in nearest-neighbour order")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runRoute(cmd *cobra.Command, opts *rootOptions, f *routeFlags) error {
	origin, err := parseGeo(f.from)
	if err != nil {
		return fmt.Errorf("--from %w", err)
	}
	dests := make([]domain.Geo, len(f.to))
	for i, s := range f.to {
		if dests[i], err = parseGeo(s); err != nil {
			return fmt.Errorf("--to %w", err)
		}
	}

	state, err := opts.replay(cmd)
	if err != nil {
		return err
	}
	c := domain.Constraints{AvoidDamaged: f.avoidDamaged, ExcludeSegments: f.exclude}
	plans, err := state.engine.RouteMulti(cmd.Context(), origin, dests, c, f.optimize)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		if len(plans) == 1 {
			return writeJSON(cmd, plans[0])
		}
		return writeJSON(cmd, plans)
	}
	for i, p := range plans {
		if len(plans) > 1 {
			fmt.Fprintf(cmd.OutOrStdout(), "leg %d\n", i+1)
		}
		printPlan(cmd, p)
	}
	return nil
}

func printPlan(cmd *cobra.Command, p domain.RoutePlan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", p.Summary)
	fmt.Fprintf(out, "%.1f km, about %.0f min, cost %.1f, confidence %.2f\n",
		p.DistanceM/1000, p.DurationMin, p.TotalCost, p.Confidence)
	for i, s := range p.Steps {
		fmt.Fprintf(out, "%3d. %s", i+1, s.Instruction)
		if s.DistanceM > 0 {
			fmt.Fprintf(out, " (%.0f m)", s.DistanceM)
		}
		fmt.Fprintln(out)
	}
	if len(p.HazardsAvoided) > 0 {
		fmt.Fprintln(out, "avoided:")
		for _, h := range p.HazardsAvoided {
			fmt.Fprintf(out, "  - %s on %s (confidence %.2f)\n", h.EventType, strings.Join(h.SegmentIDs, ","), h.Confidence)
		}
	}
	fmt.Fprintf(out, "segments: %s\n", strings.Join(p.Segments, " "))
}

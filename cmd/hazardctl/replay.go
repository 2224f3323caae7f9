package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/spf13/cobra"
)

type replayOutput struct {
	Reports []replayLine         `json:"reports"`
	Status  domain.NetworkStatus `json:"status"`
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay a report file and print each outcome and the resulting network status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := opts.replay(cmd)
			if err != nil {
				return err
			}
			status, err := state.engine.NetworkStatus(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd, replayOutput{Reports: state.lines, Status: status})
			}
			return printReplay(cmd, state.lines, status)
		},
	}
}

func printReplay(cmd *cobra.Command, lines []replayLine, st domain.NetworkStatus) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPORT\tTYPE\tOUTCOME\tEVENT\tNOTE")
	for _, l := range lines {
		outcome := string(l.Outcome)
		note := ""
		switch {
		case l.Error != "":
			outcome = "rejected"
			note = l.Error
		case len(l.Cleared) > 0:
			note = "cleared " + strings.Join(l.Cleared, ",")
		case l.Stale:
			note = "stale"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ReportID, l.EventType, outcome, shortID(l.EventID), note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nscenario time %s, snapshot v%d\n", st.ScenarioTime.Format("2006-01-02 15:04 MST"), st.SnapshotVersion)
	fmt.Fprintf(out, "segments: %d total, %d open, %d damaged, %d blocked (mean confidence %.2f)\n",
		st.TotalSegments, st.OpenSegments, st.DamagedSegments, st.BlockedSegments, st.MeanConfidence)
	fmt.Fprintf(out, "active events: %d\n", st.ActiveEvents)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/engine"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	networkPath string
	reportsPath string
	logLevel    string
	at          string
	jsonOutput  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "hazardctl",
		Short:        "Offline tools for the storm hazard routing engine",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.networkPath, "network", "data/mock/network.geojson", "road network file (.geojson or .yaml)")
	cmd.PersistentFlags().StringVar(&opts.reportsPath, "reports", "data/mock/reports.json", "JSON array of reports")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.at, "at", "", "advance scenario time to this RFC3339 time after replay")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")

	cmd.AddCommand(
		newReplayCmd(opts),
		newRouteCmd(opts),
		newValidateCmd(opts),
		newGenCmd(),
	)
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	return sharedobs.NewLogger(o.logLevel, "text")
}

// loadReports reads a JSON array of reports in delivery order.
func loadReports(path string) ([]domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	var reports []domain.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decode reports %s: %w", path, err)
	}
	for i := range reports {
		reports[i] = domain.NormalizeReport(reports[i], domain.RawEvent{})
	}
	return reports, nil
}

type replayLine struct {
	ReportID  string           `json:"report_id"`
	EventType domain.EventType `json:"event_type"`
	Outcome   domain.Outcome   `json:"outcome,omitempty"`
	EventID   string           `json:"event_id,omitempty"`
	Stale     bool             `json:"stale,omitempty"`
	Cleared   []string         `json:"cleared,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// replayState is an engine with every report from the reports file applied.
type replayState struct {
	engine *engine.Engine
	lines  []replayLine
}

// replay feeds reports to a fresh engine in file order. Scenario time starts
// at the first report and follows the newest timestamp seen, so late reports
// are flagged stale the way they would be in a live feed. The package clock
// is pinned to scenario start so output is reproducible.
func (o *rootOptions) replay(cmd *cobra.Command) (*replayState, error) {
	network, err := roadnet.Load(o.networkPath)
	if err != nil {
		return nil, err
	}
	reports, err := loadReports(o.reportsPath)
	if err != nil {
		return nil, err
	}

	start := time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)
	if len(reports) > 0 {
		start = reports[0].Timestamp
		for _, r := range reports {
			if !r.Timestamp.IsZero() && r.Timestamp.Before(start) {
				start = r.Timestamp
			}
		}
	}
	domain.SetClock(clockwork.NewFakeClockAt(start))

	opts := engine.DefaultOptions
	opts.ScenarioStart = start
	eng := engine.New(network, opts, o.logger(), observability.NewMetricsForTesting())

	ctx := cmd.Context()
	state := &replayState{engine: eng, lines: make([]replayLine, 0, len(reports))}
	for _, r := range reports {
		if r.Timestamp.After(eng.ScenarioTime()) {
			if _, err := eng.AdvanceTo(r.Timestamp); err != nil {
				return nil, err
			}
		}
		line := replayLine{ReportID: r.ID, EventType: r.EventType}
		res, err := eng.SubmitReport(ctx, r)
		if err != nil {
			line.Error = err.Error()
		} else {
			line.Outcome = res.Outcome
			line.EventID = res.Event.ID
			line.Stale = res.Stale
			for _, c := range res.Cleared {
				line.Cleared = append(line.Cleared, c.ID)
			}
		}
		state.lines = append(state.lines, line)
	}

	if o.at != "" {
		at, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return nil, fmt.Errorf("invalid --at: %w", err)
		}
		if _, err := eng.AdvanceTo(at); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseGeo parses "lat,lon".
func parseGeo(s string) (domain.Geo, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Geo{}, fmt.Errorf("%q: expected lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("%q: bad latitude: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("%q: bad longitude: %w", s, err)
	}
	return domain.Geo{Lat: lat, Lon: lon}, nil
}

package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	"github.com/spf13/cobra"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var errValidation = errors.New("validation failed")

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a road network and report file for integrity and consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			network, err := roadnet.Load(opts.networkPath)
			if err != nil {
				return err
			}
			reports, err := loadReports(opts.reportsPath)
			if err != nil {
				return err
			}

			phases := []*phase{
				validateNetwork(network),
				validateReports(reports),
				validateCoverage(network, reports, roadnet.DefaultParams.BufferDeg),
				validateReplay(cmd, opts),
			}
			return printPhases(cmd, phases, network, reports)
		},
	}
}

func printPhases(cmd *cobra.Command, phases []*phase, n *roadnet.Network, reports []domain.Report) error {
	out := cmd.OutOrStdout()
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nNetwork: %d segments, %d nodes. Reports: %d\n", n.Len(), n.NodeCount(), len(reports))

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, note := range p.notes {
			fmt.Fprintf(out, "  note: %s\n", note)
		}
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if !allPassed {
		fmt.Fprintln(out, "\nValidation FAILED.")
		return errValidation
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return nil
}

// validateNetwork checks segment geometry and that every node can reach
// every other one when one-way restrictions are ignored.
func validateNetwork(n *roadnet.Network) *phase {
	p := &phase{name: "Road network"}
	if n.Len() == 0 {
		p.errorf("network has no segments")
		return p
	}

	oneWay := 0
	for i, seg := range n.Segments() {
		if seg.OneWay {
			oneWay++
		}
		if seg.LengthM <= 0 || math.IsInf(seg.LengthM, 0) || math.IsNaN(seg.LengthM) {
			p.errorf("segment %s: length %g", seg.ID, seg.LengthM)
		}
		if seg.BaseCost <= 0 {
			p.errorf("segment %s: base cost %g", seg.ID, seg.BaseCost)
		}
		if from, to := n.Ends(i); from == to {
			p.errorf("segment %s: starts and ends at the same node", seg.ID)
		}
	}
	if oneWay > 0 {
		p.notef("%d one-way segments", oneWay)
	}

	if comps := components(n); comps > 1 {
		p.errorf("network has %d disconnected components", comps)
	}
	return p
}

// components counts connected components of the undirected node graph.
func components(n *roadnet.Network) int {
	parent := make([]int, n.NodeCount())
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	count := n.NodeCount()
	for i := range n.Len() {
		a, b := n.Ends(i)
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
			count--
		}
	}
	return count
}

// validateReports checks every report against the ingest rules. Repeated IDs
// are expected in delivery logs and only noted.
func validateReports(reports []domain.Report) *phase {
	p := &phase{name: "Reports"}
	seen := make(map[string]int, len(reports))
	for i, r := range reports {
		if err := r.Validate(); err != nil {
			p.errorf("report %d (%s): %v", i, r.ID, err)
		}
		seen[r.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			p.notef("report %s delivered %d times", id, n)
		}
	}
	return p
}

// validateCoverage checks that every located road-affecting report lands on
// at least one segment.
func validateCoverage(n *roadnet.Network, reports []domain.Report, buffer float64) *phase {
	p := &phase{name: "Report coverage"}
	for i, r := range reports {
		if _, roads := domain.DefaultMultipliers.ImpactOf(r.EventType); !roads && r.EventType != domain.EventRoadClear {
			continue
		}
		at := r.Location.Geo()
		if at.IsZero() {
			p.notef("report %d (%s) has no coordinates", i, r.ID)
			continue
		}
		hit := false
		for j := range n.Len() {
			if roadnet.Attaches(at, n.Segment(j).Geometry, n.Bounds(j), buffer) {
				hit = true
				break
			}
		}
		if !hit {
			p.errorf("report %d (%s) at %s touches no segment", i, r.ID, at)
		}
	}
	return p
}

// validateReplay replays the reports and fails on any rejection.
func validateReplay(cmd *cobra.Command, opts *rootOptions) *phase {
	p := &phase{name: "Replay"}
	state, err := opts.replay(cmd)
	if err != nil {
		p.errorf("replay: %v", err)
		return p
	}
	outcomes := map[domain.Outcome]int{}
	for _, l := range state.lines {
		if l.Error != "" {
			p.errorf("report %s rejected: %s", l.ReportID, l.Error)
			continue
		}
		outcomes[l.Outcome]++
	}
	for _, o := range []domain.Outcome{domain.OutcomeCreated, domain.OutcomeCorroborated, domain.OutcomeCleared, domain.OutcomeDuplicate, domain.OutcomeSuperseded} {
		if outcomes[o] > 0 {
			p.notef("%d %s", outcomes[o], o)
		}
	}
	return p
}

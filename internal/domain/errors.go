package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidReport       = errors.New("invalid report")
	ErrUnreachableLocation = errors.New("unreachable location")
	ErrNoPath              = errors.New("no path")
	ErrRoutingTimeout      = errors.New("routing timed out")
	ErrScenarioRewind      = errors.New("scenario time cannot move backwards")
	ErrNetworkNotLoaded    = errors.New("road network not loaded")
)

// InvalidReportError rejects a malformed report. No state is changed.
type InvalidReportError struct {
	ReportID string
	Reason   string
}

func (e *InvalidReportError) Error() string {
	if e.ReportID == "" {
		return fmt.Sprintf("invalid report: %s", e.Reason)
	}
	return fmt.Sprintf("invalid report %s: %s", e.ReportID, e.Reason)
}

func (e *InvalidReportError) Unwrap() error { return ErrInvalidReport }

// UnreachableLocationError means an endpoint has no segment within the snap
// radius.
type UnreachableLocationError struct {
	Endpoint  string // "origin" or "destination"
	Location  Geo
	RadiusDeg float64
}

func (e *UnreachableLocationError) Error() string {
	return fmt.Sprintf("%s %s: no road segment within %g degrees", e.Endpoint, e.Location, e.RadiusDeg)
}

func (e *UnreachableLocationError) Unwrap() error { return ErrUnreachableLocation }

// NoPathError means every connecting path crosses a blocked segment.
// BlockingSegments lists the closed or excluded segments bordering the
// region reachable from the origin, sorted by ID.
type NoPathError struct {
	BlockingSegments []string
}

func (e *NoPathError) Error() string {
	if len(e.BlockingSegments) == 0 {
		return "no path: destination is not connected to origin"
	}
	return "no path: blocked by " + strings.Join(e.BlockingSegments, ", ")
}

func (e *NoPathError) Unwrap() error { return ErrNoPath }

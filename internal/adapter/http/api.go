package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/engine"
)

const maxBodyBytes = 1 << 20

// Service is the query facade the API serves. *engine.Engine implements it.
type Service interface {
	SubmitReport(ctx context.Context, r domain.Report) (domain.IngestResult, error)
	SubmitBatch(ctx context.Context, reports []domain.Report) []engine.BatchResult
	NetworkStatus(ctx context.Context) (domain.NetworkStatus, error)
	Segments(status *domain.Status) ([]engine.SegmentView, error)
	Events(f engine.EventFilter) []domain.Event
	Route(ctx context.Context, q domain.RouteQuery) (domain.RoutePlan, error)
	RouteMulti(ctx context.Context, origin domain.Geo, destinations []domain.Geo, c domain.Constraints, optimizeOrder bool) ([]domain.RoutePlan, error)
	AdvanceTo(t time.Time) (time.Time, error)
	ScenarioTime() time.Time
}

type api struct {
	svc      Service
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// requestError is a client mistake detected before reaching the engine.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

// --- reports ---

type batchItem struct {
	Index  int                  `json:"index"`
	Result *domain.IngestResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type batchResponse struct {
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
	Results  []batchItem `json:"results"`
}

func (a *api) handleSubmitReports(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.writeError(w, r, badRequest("read body: %v", err))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		a.submitBatch(w, r, body)
		return
	}

	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		a.writeError(w, r, badRequest("decode report: %v", err))
		return
	}
	res, err := a.svc.SubmitReport(r.Context(), a.prepare(r.Context(), report))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == domain.OutcomeCreated {
		status = http.StatusCreated
	}
	sharedobs.WriteJSON(w, status, res)
}

func (a *api) submitBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var reports []domain.Report
	if err := json.Unmarshal(body, &reports); err != nil {
		a.writeError(w, r, badRequest("decode reports: %v", err))
		return
	}
	for i := range reports {
		reports[i] = a.prepare(r.Context(), reports[i])
	}

	results := a.svc.SubmitBatch(r.Context(), reports)
	resp := batchResponse{Results: make([]batchItem, len(results))}
	for i, res := range results {
		item := batchItem{Index: res.Index}
		if res.Err != nil {
			item.Error = res.Err.Error()
			resp.Rejected++
		} else {
			result := res.Result
			item.Result = &result
			resp.Accepted++
		}
		resp.Results[i] = item
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// prepare normalizes an API report the way the stream transformer does. A
// missing timestamp means "observed now" in scenario time.
func (a *api) prepare(ctx context.Context, report domain.Report) domain.Report {
	report = domain.NormalizeReport(report, domain.RawEvent{Timestamp: a.svc.ScenarioTime()})
	return domain.ResolveLocation(ctx, report, a.geocoder, a.logger)
}

// --- queries ---

func (a *api) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f engine.EventFilter
	if v := q.Get("type"); v != "" {
		f.Type = domain.EventType(v)
		if !f.Type.Valid() {
			a.writeError(w, r, badRequest("unknown event type %q", v))
			return
		}
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			a.writeError(w, r, badRequest("active must be a boolean"))
			return
		}
		f.Active = &active
	}
	sharedobs.WriteJSON(w, http.StatusOK, a.svc.Events(f))
}

func (a *api) handleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.NetworkStatus(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (a *api) handleSegments(w http.ResponseWriter, r *http.Request) {
	var filter *domain.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			a.writeError(w, r, badRequest("%v", err))
			return
		}
		filter = &st
	}
	segments, err := a.svc.Segments(filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]segmentView, len(segments))
	for i, s := range segments {
		views[i] = newSegmentView(s)
	}
	sharedobs.WriteJSON(w, http.StatusOK, views)
}

// --- routing ---

func (a *api) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	origin, err := a.resolve(r.Context(), req.Origin, "origin")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	dest, err := a.resolve(r.Context(), req.Destination, "destination")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	plan, err := a.svc.Route(r.Context(), domain.RouteQuery{Origin: origin, Destination: dest, Constraints: req.Constraints})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, plan)
}

func (a *api) handleRouteMulti(w http.ResponseWriter, r *http.Request) {
	var req multiRouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(req.Destinations) == 0 {
		a.writeError(w, r, badRequest("at least one destination is required"))
		return
	}
	origin, err := a.resolve(r.Context(), req.Origin, "origin")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	dests := make([]domain.Geo, len(req.Destinations))
	for i, d := range req.Destinations {
		if dests[i], err = a.resolve(r.Context(), d, fmt.Sprintf("destination %d", i)); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	plans, err := a.svc.RouteMulti(r.Context(), origin, dests, req.Constraints, req.OptimizeOrder)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newMultiRouteResponse(plans))
}

// resolve turns an endpoint into coordinates, geocoding it by name when no
// coordinates are given.
func (a *api) resolve(ctx context.Context, e endpoint, which string) (domain.Geo, error) {
	if e.Lat != nil && e.Lon != nil {
		return domain.Geo{Lat: *e.Lat, Lon: *e.Lon}, nil
	}
	if e.Name == "" {
		return domain.Geo{}, badRequest("%s requires lat and lon or a name", which)
	}
	g, err := domain.ResolvePlace(ctx, a.geocoder, e.Name, e.Region)
	if err != nil {
		return domain.Geo{}, &requestError{status: http.StatusUnprocessableEntity, msg: which + ": " + err.Error()}
	}
	return g, nil
}

// --- scenario time ---

type scenarioTime struct {
	Time time.Time `json:"time"`
}

func (a *api) handleScenarioTime(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, scenarioTime{Time: a.svc.ScenarioTime()})
}

func (a *api) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req scenarioTime
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Time.IsZero() {
		a.writeError(w, r, badRequest("time is required"))
		return
	}
	now, err := a.svc.AdvanceTo(req.Time)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, scenarioTime{Time: now})
}

// --- errors ---

type errorBody struct {
	Error            string   `json:"error"`
	BlockingSegments []string `json:"blocking_segments,omitempty"`
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, domain.ErrInvalidReport), errors.Is(err, domain.ErrUnreachableLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoPath), errors.Is(err, domain.ErrScenarioRewind):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoutingTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNetworkNotLoaded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var noPath *domain.NoPathError
	if errors.As(err, &noPath) {
		body.BlockingSegments = noPath.BlockingSegments
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, body)
}

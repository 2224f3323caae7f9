// Package engine is the query facade over report fusion, the road network
// snapshot cache, and the router.
//
// Writers (report submission) go through the ingest store, which bumps its
// version; readers obtain an immutable snapshot from the cache, which is
// rebuilt lazily when the store version or the scenario time changed. A
// route therefore always runs against a complete snapshot and a report
// submitted after a route call started may be invisible to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/config"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/ingest"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	"github.com/couchcryptid/storm-hazard-routing/internal/routing"
	"golang.org/x/sync/semaphore"
)

// Options configures an Engine.
type Options struct {
	Ingest        ingest.Params
	Network       roadnet.Params
	Routing       routing.Params
	Workers       int
	ScenarioStart time.Time // zero means domain.Now()
}

// DefaultOptions mirror the configuration defaults.
var DefaultOptions = Options{
	Ingest:  ingest.DefaultParams,
	Network: roadnet.DefaultParams,
	Routing: routing.DefaultParams,
	Workers: 8,
}

// OptionsFromConfig maps service configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Ingest: ingest.Params{
			MatchRadiusDeg: cfg.EventMatchRadiusDeg,
			StaleTolerance: cfg.StaleTolerance,
			Shards:         ingest.DefaultParams.Shards,
		},
		Network: roadnet.Params{
			BufferDeg:   cfg.SegmentBufferDeg,
			Multipliers: domain.Multipliers{Damage: cfg.DamageMultiplier, Flood: cfg.FloodMultiplier},
			Decay:       domain.Decay{After: cfg.DecayAfter, HalfLife: cfg.DecayHalfLife, Floor: cfg.DecayFloor},
		},
		Routing: routing.Params{
			SnapRadiusDeg:   cfg.SnapRadiusDeg,
			Timeout:         cfg.RouteTimeout,
			SpeedNormalKmh:  cfg.SpeedNormalKmh,
			SpeedDamagedKmh: cfg.SpeedDamagedKmh,
		},
		Workers:       cfg.EngineWorkers,
		ScenarioStart: cfg.ScenarioStart,
	}
}

// Engine is safe for concurrent use. At most Workers ingest and routing
// calls execute at once; further calls wait for a slot or their context.
type Engine struct {
	opts    Options
	store   *ingest.Store
	router  *routing.Router
	cache   atomic.Pointer[roadnet.Cache]
	sem     *semaphore.Weighted
	logger  *slog.Logger
	metrics *observability.Metrics

	scenario atomic.Int64 // unix nanoseconds
}

// New creates an engine. The road network may be nil and loaded later with
// SetNetwork; until then routing and status calls fail with
// domain.ErrNetworkNotLoaded while reports are still accepted.
func New(n *roadnet.Network, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions.Workers
	}
	if opts.ScenarioStart.IsZero() {
		opts.ScenarioStart = domain.Now()
	}
	e := &Engine{
		opts:    opts,
		store:   ingest.NewStore(opts.Ingest),
		router:  routing.NewRouter(opts.Routing),
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		logger:  logger,
		metrics: metrics,
	}
	e.scenario.Store(opts.ScenarioStart.UTC().UnixNano())
	metrics.ScenarioTime.Set(float64(opts.ScenarioStart.Unix()))
	if n != nil {
		e.SetNetwork(n)
	}
	return e
}

// SetNetwork replaces the road network. Routes already running keep the
// snapshot they started with.
func (e *Engine) SetNetwork(n *roadnet.Network) {
	e.cache.Store(roadnet.NewCache(n, e.store, e.opts.Network, e.observeBuild))
	e.logger.Info("road network loaded", "segments", n.Len(), "nodes", n.NodeCount())
}

func (e *Engine) observeBuild(d time.Duration) {
	e.metrics.SnapshotBuilds.Inc()
	e.metrics.SnapshotBuildDuration.Observe(d.Seconds())
}

// CheckReadiness returns nil once a road network is loaded.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.cache.Load() == nil {
		return domain.ErrNetworkNotLoaded
	}
	return nil
}

// Workers is the configured concurrency bound.
func (e *Engine) Workers() int { return e.opts.Workers }

func (e *Engine) acquire(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for worker: %w", err)
	}
	return nil
}

// ScenarioTime is the time decay and staleness are evaluated at.
func (e *Engine) ScenarioTime() time.Time {
	return time.Unix(0, e.scenario.Load()).UTC()
}

// AdvanceTo moves scenario time forward. Moving to the current time is a
// no-op; moving backwards fails with domain.ErrScenarioRewind. The next
// snapshot request re-evaluates decay at the new time.
func (e *Engine) AdvanceTo(t time.Time) (time.Time, error) {
	next := t.UTC().UnixNano()
	for {
		cur := e.scenario.Load()
		if next < cur {
			return e.ScenarioTime(), fmt.Errorf("advance to %s: %w", t.UTC().Format(time.RFC3339), domain.ErrScenarioRewind)
		}
		if e.scenario.CompareAndSwap(cur, next) {
			break
		}
	}
	now := e.ScenarioTime()
	e.metrics.ScenarioTime.Set(float64(now.Unix()))
	e.logger.Info("scenario time advanced", "scenario_time", now)
	return now, nil
}

// Snapshot returns the snapshot for the current store version and scenario
// time, building it if needed.
func (e *Engine) Snapshot() (*roadnet.Snapshot, error) {
	cache := e.cache.Load()
	if cache == nil {
		return nil, domain.ErrNetworkNotLoaded
	}
	snap := cache.Get(e.ScenarioTime())
	e.metrics.SnapshotVersion.Set(float64(snap.Version()))
	return snap, nil
}

// SubmitReport validates a report and fuses it into the event store.
func (e *Engine) SubmitReport(ctx context.Context, r domain.Report) (domain.IngestResult, error) {
	if err := e.acquire(ctx); err != nil {
		return domain.IngestResult{}, err
	}
	defer e.sem.Release(1)

	res, err := e.store.Submit(r, e.ScenarioTime())
	if err != nil {
		e.metrics.ReportsIngested.WithLabelValues("invalid").Inc()
		e.logger.Warn("report rejected", "report_id", r.ID, "error", err)
		return domain.IngestResult{}, err
	}

	e.metrics.ReportsIngested.WithLabelValues(string(res.Outcome)).Inc()
	if res.Stale {
		e.metrics.StaleReports.Inc()
	}
	attrs := []any{
		"report_id", r.ID,
		"event_id", res.Event.ID,
		"event_type", res.Event.EventType,
		"outcome", res.Outcome,
		"confidence", res.Event.Confidence,
		"corroboration_count", res.Event.CorroborationCount,
	}
	if len(res.Cleared) > 0 {
		cleared := make([]string, len(res.Cleared))
		for i, c := range res.Cleared {
			cleared[i] = c.ID
		}
		e.logger.Info("events cleared", append(attrs, "cleared", cleared)...)
	} else {
		e.logger.Debug("report ingested", attrs...)
	}
	return res, nil
}

// Ingest submits a report and stamps the result for publication.
func (e *Engine) Ingest(ctx context.Context, r domain.Report) (domain.EventUpdate, error) {
	res, err := e.SubmitReport(ctx, r)
	if err != nil {
		return domain.EventUpdate{}, err
	}
	return domain.NewEventUpdate(res), nil
}

// NetworkStatus returns aggregate counts for the current snapshot.
func (e *Engine) NetworkStatus(_ context.Context) (domain.NetworkStatus, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return domain.NetworkStatus{}, err
	}
	st := snap.Status()
	e.metrics.ActiveEvents.Set(float64(st.ActiveEvents))
	return st, nil
}

// Route plans a hazard-aware route against the current snapshot.
func (e *Engine) Route(ctx context.Context, q domain.RouteQuery) (domain.RoutePlan, error) {
	start := time.Now()
	plan, err := e.route(ctx, q)
	e.metrics.RouteDuration.Observe(time.Since(start).Seconds())
	e.metrics.RouteRequests.WithLabelValues(routeOutcome(err)).Inc()
	if err != nil {
		e.logger.Info("route failed", "origin", q.Origin, "destination", q.Destination, "error", err)
		return domain.RoutePlan{}, err
	}
	e.logger.Debug("route planned",
		"route_id", plan.ID,
		"segments", len(plan.Segments),
		"total_cost", plan.TotalCost,
		"hazards_avoided", len(plan.HazardsAvoided),
		"snapshot_version", plan.SnapshotVersion,
	)
	return plan, nil
}

func (e *Engine) route(ctx context.Context, q domain.RouteQuery) (domain.RoutePlan, error) {
	if err := e.acquire(ctx); err != nil {
		return domain.RoutePlan{}, err
	}
	defer e.sem.Release(1)

	snap, err := e.Snapshot()
	if err != nil {
		return domain.RoutePlan{}, err
	}
	return e.router.Route(ctx, snap, q)
}

// RouteMulti plans a multi-stop delivery from origin. Every leg uses the same
// snapshot.
func (e *Engine) RouteMulti(ctx context.Context, origin domain.Geo, destinations []domain.Geo, c domain.Constraints, optimizeOrder bool) ([]domain.RoutePlan, error) {
	if len(destinations) == 0 {
		return nil, errors.New("at least one destination is required")
	}
	start := time.Now()
	plans, err := e.routeMulti(ctx, origin, destinations, c, optimizeOrder)
	e.metrics.RouteDuration.Observe(time.Since(start).Seconds())
	e.metrics.RouteRequests.WithLabelValues(routeOutcome(err)).Inc()
	if err != nil {
		e.logger.Info("multi-stop route failed", "origin", origin, "stops", len(destinations), "error", err)
	}
	return plans, err
}

func (e *Engine) routeMulti(ctx context.Context, origin domain.Geo, destinations []domain.Geo, c domain.Constraints, optimizeOrder bool) ([]domain.RoutePlan, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return e.router.RouteMulti(ctx, snap, origin, destinations, c, optimizeOrder)
}

func routeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoPath):
		return "no_path"
	case errors.Is(err, domain.ErrUnreachableLocation):
		return "unreachable"
	case errors.Is(err, domain.ErrRoutingTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

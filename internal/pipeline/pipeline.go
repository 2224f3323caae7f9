package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw report messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw message into a report ready for ingest.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Report, error)
}

// Ingester fuses a report into the situational model.
type Ingester interface {
	Ingest(ctx context.Context, r domain.Report) (domain.EventUpdate, error)
}

// BatchLoader publishes event updates to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, updates []domain.EventUpdate) error
}

// Pipeline orchestrates the extract-transform-ingest-publish loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	ingester    Ingester
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, i Ingester, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		ingester:    i,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why it is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	accepted, ok := p.ingestAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if accepted > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// ingestAndLoad transforms and ingests each message, publishes the updates
// that changed state, and commits offsets. Malformed messages are logged,
// counted, and committed so they are not redelivered. Returns the number of
// accepted reports and false if the pipeline should stop.
func (p *Pipeline) ingestAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool) {
	updates := make([]domain.EventUpdate, 0, len(rawBatch))
	accepted := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		report, err := p.transformer.Transform(ctx, raw)
		if err == nil {
			var update domain.EventUpdate
			update, err = p.ingester.Ingest(ctx, report)
			if err == nil {
				accepted = append(accepted, raw)
				if update.Changed() {
					updates = append(updates, update)
				}
				continue
			}
		}
		if ctx.Err() != nil {
			return 0, false
		}
		p.logger.Warn("report rejected, skipping message",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		p.metrics.TransformErrors.Inc()
		p.commitOffset(ctx, raw)
	}

	if len(updates) > 0 {
		// Ingest is idempotent, so redelivered messages after a failed
		// publish only produce duplicates, which are not republished.
		if err := p.loader.LoadBatch(ctx, updates); err != nil {
			p.logger.Error("publish batch failed", "error", err, "batch_size", len(updates))
			return 0, p.backoffOrStop(ctx, backoff)
		}
		p.metrics.MessagesProduced.Add(float64(len(updates)))
	}

	for _, raw := range accepted {
		p.commitOffset(ctx, raw)
	}
	return len(accepted), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// ReportTransformer implements Transformer using domain parsing functions
// with optional geocoding of incomplete locations.
type ReportTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a ReportTransformer. Pass a nil geocoder to disable
// location resolution.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ReportTransformer {
	return &ReportTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *ReportTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Report, error) {
	report, err := domain.ParseRawReport(raw)
	if err != nil {
		return domain.Report{}, err
	}
	return domain.ResolveLocation(ctx, report, t.geocoder, t.logger), nil
}

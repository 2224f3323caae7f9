package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// ResolveLocation fills in whichever half of a report's location is missing.
// Address-only reports are forward-geocoded; reports with coordinates but no
// address are reverse-geocoded for readable hazard descriptions. If geocoder
// is nil or the lookup fails the report is returned unchanged and validation
// decides whether it is usable.
func ResolveLocation(ctx context.Context, r Report, geocoder Geocoder, logger *slog.Logger) Report {
	if geocoder == nil {
		return r
	}

	hasCoords := !r.Location.Geo().IsZero()
	hasAddress := r.Location.Address != ""

	if !hasCoords && hasAddress {
		result, err := geocoder.ForwardGeocode(ctx, r.Location.Address, r.Location.Region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"report_id", r.ID,
				"address", r.Location.Address,
				"region", r.Location.Region,
				"error", err,
			)
			return r
		}
		if result.Found() {
			r.Location.Lat = result.Lat
			r.Location.Lon = result.Lon
		}
		return r
	}

	if hasCoords && !hasAddress {
		result, err := geocoder.ReverseGeocode(ctx, r.Location.Lat, r.Location.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"report_id", r.ID,
				"lat", r.Location.Lat,
				"lon", r.Location.Lon,
				"error", err,
			)
			return r
		}
		r.Location.Address = result.FormattedAddress
	}

	return r
}

// ResolvePlace forward-geocodes a named route endpoint.
func ResolvePlace(ctx context.Context, geocoder Geocoder, name, region string) (Geo, error) {
	if geocoder == nil {
		return Geo{}, fmt.Errorf("resolve %q: geocoding is disabled", name)
	}
	result, err := geocoder.ForwardGeocode(ctx, name, region)
	if err != nil {
		return Geo{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	if !result.Found() {
		return Geo{}, fmt.Errorf("resolve %q: no match", name)
	}
	return Geo{Lat: result.Lat, Lon: result.Lon}, nil
}

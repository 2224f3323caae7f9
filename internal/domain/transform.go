package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRawReport deserializes a RawEvent's value into a Report.
// Missing IDs are replaced by the report fingerprint and a missing timestamp
// falls back to the message timestamp.
func ParseRawReport(raw RawEvent) (Report, error) {
	var r Report
	if err := json.Unmarshal(raw.Value, &r); err != nil {
		return Report{}, fmt.Errorf("parse raw report: %w", err)
	}
	return NormalizeReport(r, raw), nil
}

// NormalizeReport trims and defaults wire fields.
func NormalizeReport(r Report, raw RawEvent) Report {
	r.ID = strings.TrimSpace(r.ID)
	r.EventType = EventType(strings.ToLower(strings.TrimSpace(string(r.EventType))))
	r.Source = Source(strings.ToLower(strings.TrimSpace(string(r.Source))))
	r.Description = strings.TrimSpace(r.Description)
	r.Location.Address = strings.TrimSpace(r.Location.Address)
	if r.Timestamp.IsZero() {
		r.Timestamp = raw.Timestamp
	}
	r.Timestamp = r.Timestamp.UTC()
	if r.ID == "" {
		r.ID = Fingerprint(r)
	}
	return r
}

// Fingerprint is a deterministic digest of the fields that identify an
// observation. Two copies of the same report from a retrying producer share a
// fingerprint even when they carry different IDs.
func Fingerprint(r Report) string {
	input := fmt.Sprintf("%s|%.5f|%.5f|%s|%s",
		r.EventType, r.Location.Lat, r.Location.Lon, r.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), r.Source)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if r.EventType == "" {
		return short
	}
	return string(r.EventType) + "-" + short
}

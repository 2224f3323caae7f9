// Package domain models hazard reports about a disaster-affected road network,
// the events they fuse into, and the route plans computed around them.
//
// # Reports
//
// A report is a single, time-stamped observation from one source: "road closed
// at 35.60,-82.55" from a county dispatcher, "bridge washed out" from a
// satellite pass. Reports are immutable once accepted. They arrive as flat
// JSON on the source topic or through the HTTP API:
//
//	{"id":"r-1","timestamp":"2024-09-28T14:00:00Z","event_type":"road_closure",
//	 "location":{"lat":35.60,"lon":-82.55},"source":"ncdot","confidence":0.9}
//
// Reports that carry only an address are forward-geocoded before ingest (see
// [ResolveLocation]). A (0,0) coordinate pair is treated as "no coordinates".
//
// # Events
//
// Reports of the same type within the match radius of each other describe the
// same event. Each additional report corroborates the event: the counter goes
// up and the confidence becomes the maximum seen. A road_clear report retires
// nearby closure, damage and flooding events; events are deactivated, never
// deleted.
//
// Event IDs are UUIDv5 values derived from the first report's ID, so replaying
// the same report stream reproduces the same event IDs.
//
// # Geometry
//
// Proximity is a planar distance in degrees with a bounding-box pre-filter
// (see [Near]). This is a deliberate simplification for regional networks
// where degree distortion is small; it is not a geodesic distance.
//
// # Confidence decay
//
// Confidence is never rewritten once stored. The effective confidence at a
// scenario time holds for [Decay.After] after the last sighting, then halves
// every [Decay.HalfLife]. Events whose effective confidence falls below
// [Decay.Floor] no longer influence segment costs.
package domain

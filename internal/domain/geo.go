package domain

import "math"

const metersPerDegreeLat = 111_320.0

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// BoundsOf returns the bounding box of a set of points.
func BoundsOf(points []Geo) BBox {
	b := BBox{MinLat: math.Inf(1), MinLon: math.Inf(1), MaxLat: math.Inf(-1), MaxLon: math.Inf(-1)}
	for _, p := range points {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Expand grows the box by d degrees on every side.
func (b BBox) Expand(d float64) BBox {
	return BBox{MinLat: b.MinLat - d, MinLon: b.MinLon - d, MaxLat: b.MaxLat + d, MaxLon: b.MaxLon + d}
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Geo) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// PlanarDistance is the Euclidean distance between a and b in degrees.
func PlanarDistance(a, b Geo) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// Near reports whether a and b are within radius degrees of each other.
// It is a planar check with a bounding-box short circuit, not a geodesic one.
func Near(a, b Geo, radius float64) bool {
	if math.Abs(a.Lat-b.Lat) > radius || math.Abs(a.Lon-b.Lon) > radius {
		return false
	}
	return PlanarDistance(a, b) <= radius
}

// DistanceToPolyline is the planar distance in degrees from p to the closest
// point of line.
func DistanceToPolyline(p Geo, line []Geo) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return PlanarDistance(p, line[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		best = math.Min(best, distanceToSegment(p, line[i-1], line[i]))
	}
	return best
}

func distanceToSegment(p, a, b Geo) float64 {
	dLat, dLon := b.Lat-a.Lat, b.Lon-a.Lon
	lenSq := dLat*dLat + dLon*dLon
	if lenSq == 0 {
		return PlanarDistance(p, a)
	}
	t := ((p.Lat-a.Lat)*dLat + (p.Lon-a.Lon)*dLon) / lenSq
	t = math.Max(0, math.Min(1, t))
	return PlanarDistance(p, Geo{Lat: a.Lat + t*dLat, Lon: a.Lon + t*dLon})
}

// DistanceMeters is an equirectangular approximation of the ground distance
// between a and b.
func DistanceMeters(a, b Geo) float64 {
	midLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dy := (b.Lat - a.Lat) * metersPerDegreeLat
	dx := (b.Lon - a.Lon) * metersPerDegreeLat * math.Cos(midLat)
	return math.Hypot(dx, dy)
}

// LengthMeters sums DistanceMeters along a polyline.
func LengthMeters(line []Geo) float64 {
	var total float64
	for i := 1; i < len(line); i++ {
		total += DistanceMeters(line[i-1], line[i])
	}
	return total
}

// Bearing is the initial heading from a to b in degrees clockwise from north,
// in [0, 360).
func Bearing(a, b Geo) float64 {
	lat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dx := (b.Lon - a.Lon) * math.Cos(lat)
	dy := b.Lat - a.Lat
	deg := math.Atan2(dx, dy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// TurnAngle is the signed change of heading from in to out, in (-180, 180].
// Positive values turn right.
func TurnAngle(in, out float64) float64 {
	d := math.Mod(out-in, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// earthCircumference at the equator in meters, matching the Web Mercator tile math
const earthCircumference = 40075016.686

// TileSize is the pixel size of a map tile
const TileSize = 256

// MetersPerPixel returns the ground resolution of a pixel at the given zoom and latitude
func MetersPerPixel(zoom float64, lat float64) float64 {
	return earthCircumference * math.Cos(lat*math.Pi/180) / (TileSize * math.Pow(2, zoom))
}

// WithinPointerDistance reports whether b lies within pointerPx screen pixels of a
// at the given zoom level.
func WithinPointerDistance(a, b orb.Point, pointerPx, zoom float64) bool {
	if pointerPx <= 0 {
		return a.Equal(b)
	}
	tolerance := pointerPx * MetersPerPixel(zoom, a.Lat())
	return geo.Distance(a, b) <= tolerance
}

// orientation returns >0 for counter-clockwise, <0 for clockwise, 0 for collinear
func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// SegmentsIntersect reports whether segment p1-p2 touches segment q1-q2,
// including collinear overlaps and shared endpoints.
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// ExtensionIntersects reports whether appending next to the open path
// vertices would make the path cross itself.
func ExtensionIntersects(vertices []orb.Point, next orb.Point) bool {
	n := len(vertices)
	if n == 0 {
		return false
	}
	last := vertices[n-1]

	// The new edge shares an endpoint with the previous edge, so only a
	// collinear fold back onto it counts.
	if n >= 2 {
		prev := vertices[n-2]
		if orientation(prev, last, next) == 0 && onSegment(prev, last, next) {
			return true
		}
	}

	for i := 0; i+1 < n-1; i++ {
		if SegmentsIntersect(vertices[i], vertices[i+1], last, next) {
			return true
		}
	}
	return false
}

// ClosingIntersects reports whether closing the open path back to its first
// vertex would produce a self-intersecting ring.
func ClosingIntersects(vertices []orb.Point) bool {
	n := len(vertices)
	if n < MinVertices {
		return false
	}

	for i := 0; i+1 < n; i++ {
		if ExtensionIntersects(vertices[:i+1], vertices[i+1]) {
			return true
		}
	}

	first, last := vertices[0], vertices[n-1]
	// Skip the first and last edges: they share an endpoint with the closing edge.
	for i := 1; i+1 < n-1; i++ {
		if SegmentsIntersect(vertices[i], vertices[i+1], last, first) {
			return true
		}
	}
	return false
}

package geometry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// MinVertices is the smallest number of distinct vertices that encloses an area
const MinVertices = 3

var (
	ErrTooFewVertices   = errors.New("polygon needs at least 3 vertices")
	ErrSelfIntersection = errors.New("polygon ring intersects itself")
	ErrInvalidCoord     = errors.New("coordinate out of range")
	ErrDegenerate       = errors.New("polygon has no area")
)

// Polygon is a closed ring of (lon, lat) vertices captured by a draw session.
// The ring is copied on construction and on every accessor, so a Polygon
// cannot be modified after it has been emitted.
type Polygon struct {
	id          string
	ring        orb.Ring
	completedAt time.Time
}

// NewPolygon validates vertices and closes the ring. The vertices must not
// repeat the first point at the end; that is done here.
func NewPolygon(id string, vertices []orb.Point) (Polygon, error) {
	if len(vertices) < MinVertices {
		return Polygon{}, ErrTooFewVertices
	}
	for _, v := range vertices {
		if err := ValidateCoord(v); err != nil {
			return Polygon{}, err
		}
	}
	if ClosingIntersects(vertices) {
		return Polygon{}, ErrSelfIntersection
	}

	ring := make(orb.Ring, 0, len(vertices)+1)
	ring = append(ring, vertices...)
	ring = append(ring, vertices[0])

	if geo.Area(ring) == 0 {
		return Polygon{}, ErrDegenerate
	}

	return Polygon{
		id:          id,
		ring:        ring,
		completedAt: time.Now(),
	}, nil
}

// ID returns the draw session the polygon came from
func (p Polygon) ID() string {
	return p.id
}

// CompletedAt is the time the ring was closed
func (p Polygon) CompletedAt() time.Time {
	return p.completedAt
}

// IsZero reports whether p is the zero value
func (p Polygon) IsZero() bool {
	return len(p.ring) == 0
}

// Ring returns a copy of the closed ring (first vertex repeated last)
func (p Polygon) Ring() orb.Ring {
	return p.ring.Clone()
}

// Vertices returns a copy of the open vertex list
func (p Polygon) Vertices() []orb.Point {
	if len(p.ring) == 0 {
		return nil
	}
	out := make([]orb.Point, len(p.ring)-1)
	copy(out, p.ring[:len(p.ring)-1])
	return out
}

// Orb returns the polygon as an orb.Polygon with a single outer ring
func (p Polygon) Orb() orb.Polygon {
	return orb.Polygon{p.Ring()}
}

// Feature wraps the polygon as a GeoJSON feature tagged with its session ID
func (p Polygon) Feature() *geojson.Feature {
	f := geojson.NewFeature(p.Orb())
	f.ID = p.id
	return f
}

// WKT returns the polygon in well-known text, used as a stable cache key
func (p Polygon) WKT() string {
	return wkt.MarshalString(p.Orb())
}

// AreaKm2 returns the geodesic area enclosed by the ring in square kilometers
func (p Polygon) AreaKm2() float64 {
	return math.Abs(geo.Area(p.ring)) / 1e6
}

// Bound returns the bounding box of the ring
func (p Polygon) Bound() orb.Bound {
	return p.ring.Bound()
}

func (p Polygon) String() string {
	return fmt.Sprintf("polygon %s (%d vertices)", p.id, len(p.ring)-1)
}

// ValidateCoord checks that a point is a valid WGS84 longitude/latitude pair
func ValidateCoord(pt orb.Point) error {
	lon, lat := pt.Lon(), pt.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: lon=%f lat=%f", ErrInvalidCoord, lon, lat)
	}
	return nil
}

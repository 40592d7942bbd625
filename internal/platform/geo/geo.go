// Package geo provides spherical distance helpers shared by the post stores and location indexes.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the sphere radius used for every distance in the service.
	// MongoDB $centerSphere queries are expressed in radians against the same value.
	EarthRadiusKm = 6378.1

	// DistanceToleranceKm absorbs floating-point noise on the closed radius boundary.
	DistanceToleranceKm = 1e-9
)

var (
	// ErrInvalidPoint is returned when a coordinate is missing, non-finite or out of range.
	ErrInvalidPoint = errors.New("invalid coordinates")

	// ErrInvalidRadius is returned when a radius is negative or non-finite.
	ErrInvalidRadius = errors.New("invalid radius")
)

// Point is a location on the sphere in degrees.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Validate checks that both coordinates are finite and inside their ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidPoint, p.Longitude)
	}
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidPoint, p.Latitude)
	}
	return nil
}

// ValidateRadius accepts zero (exact-coordinate match) and any finite positive radius.
func ValidateRadius(radiusKm float64) error {
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		return fmt.Errorf("%w: %v km", ErrInvalidRadius, radiusKm)
	}
	return nil
}

// DistanceKm returns the great-circle distance between a and b using the haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Within reports whether b lies inside the closed disc of radiusKm around a.
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm+DistanceToleranceKm
}

// RadiusToRadians converts a surface distance to the central angle MongoDB expects.
func RadiusToRadians(radiusKm float64) float64 {
	return radiusKm / EarthRadiusKm
}

// LonRange is an inclusive longitude interval that never crosses the antimeridian.
type LonRange struct {
	Min float64
	Max float64
}

// BoundingBox is the lat/lon rectangle enclosing a spherical cap.
// Caps that cross the antimeridian are split into two longitude ranges.
type BoundingBox struct {
	MinLat    float64
	MaxLat    float64
	LonRanges []LonRange
}

// Covers reports whether p falls inside the box.
func (b BoundingBox) Covers(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	for _, r := range b.LonRanges {
		if p.Longitude >= r.Min && p.Longitude <= r.Max {
			return true
		}
	}
	return false
}

// FullLongitude reports whether the box spans every longitude.
func (b BoundingBox) FullLongitude() bool {
	return len(b.LonRanges) == 1 && b.LonRanges[0].Min <= -180 && b.LonRanges[0].Max >= 180
}

// Bound returns the bounding box of the cap of radiusKm around center.
// The box is padded by the distance tolerance so boundary points are never dropped.
func Bound(center Point, radiusKm float64) BoundingBox {
	angular := (radiusKm + DistanceToleranceKm) / EarthRadiusKm
	full := []LonRange{{Min: -180, Max: 180}}

	if angular >= math.Pi {
		return BoundingBox{MinLat: -90, MaxLat: 90, LonRanges: full}
	}

	lat := toRadians(center.Latitude)
	minLat := lat - angular
	maxLat := lat + angular

	// the cap contains a pole: every longitude is reachable
	if maxLat >= math.Pi/2 || minLat <= -math.Pi/2 {
		return BoundingBox{
			MinLat:    math.Max(-90, toDegrees(minLat)),
			MaxLat:    math.Min(90, toDegrees(maxLat)),
			LonRanges: full,
		}
	}

	dLon := toDegrees(math.Asin(math.Min(1, math.Sin(angular)/math.Cos(lat))))
	box := BoundingBox{MinLat: toDegrees(minLat), MaxLat: toDegrees(maxLat)}

	minLon := center.Longitude - dLon
	maxLon := center.Longitude + dLon
	switch {
	case dLon >= 180:
		box.LonRanges = full
	case minLon < -180:
		box.LonRanges = []LonRange{{Min: minLon + 360, Max: 180}, {Min: -180, Max: maxLon}}
	case maxLon > 180:
		box.LonRanges = []LonRange{{Min: minLon, Max: 180}, {Min: -180, Max: maxLon - 360}}
	default:
		box.LonRanges = []LonRange{{Min: minLon, Max: maxLon}}
	}
	return box
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

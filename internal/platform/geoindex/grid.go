package geoindex

import (
	"context"
	"math"
	"sync"

	"foodshare_backend/internal/platform/geo"
)

// DefaultCellDegrees is the grid cell edge used when none is configured (~28 km at the equator).
const DefaultCellDegrees = 0.25

type cellKey struct {
	lat int
	lon int
}

// GridIndex is an in-memory index bucketing points into fixed lat/lon cells.
// Radius queries visit only the cells overlapping the cap's bounding box and
// confirm every candidate with the haversine distance, so results are exact.
type GridIndex struct {
	mu      sync.RWMutex
	cellDeg float64
	cells   map[cellKey]map[string]geo.Point
	points  map[string]geo.Point
}

var _ Index = (*GridIndex)(nil)

// NewGridIndex creates an empty grid. cellDeg <= 0 selects DefaultCellDegrees.
func NewGridIndex(cellDeg float64) *GridIndex {
	if cellDeg <= 0 || math.IsNaN(cellDeg) || math.IsInf(cellDeg, 0) {
		cellDeg = DefaultCellDegrees
	}
	return &GridIndex{
		cellDeg: cellDeg,
		cells:   make(map[cellKey]map[string]geo.Point),
		points:  make(map[string]geo.Point),
	}
}

// Backend returns "memory".
func (g *GridIndex) Backend() string { return "memory" }

// Len returns the number of indexed entries.
func (g *GridIndex) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.points)
}

func (g *GridIndex) cellOf(p geo.Point) cellKey {
	return cellKey{
		lat: int(math.Floor(p.Latitude / g.cellDeg)),
		lon: int(math.Floor(p.Longitude / g.cellDeg)),
	}
}

// CheckPoint accepts every valid point.
func (g *GridIndex) CheckPoint(p geo.Point) error {
	return p.Validate()
}

// Insert adds the entry, moving it when id is already indexed elsewhere.
func (g *GridIndex) Insert(_ context.Context, id string, p geo.Point) error {
	if err := g.CheckPoint(p); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.points[id]; ok {
		g.removeLocked(id, old)
	}
	key := g.cellOf(p)
	cell, ok := g.cells[key]
	if !ok {
		cell = make(map[string]geo.Point)
		g.cells[key] = cell
	}
	cell[id] = p
	g.points[id] = p
	return nil
}

// Remove drops the entry for id.
func (g *GridIndex) Remove(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.points[id]; ok {
		g.removeLocked(id, old)
	}
	return nil
}

func (g *GridIndex) removeLocked(id string, p geo.Point) {
	key := g.cellOf(p)
	if cell, ok := g.cells[key]; ok {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, key)
		}
	}
	delete(g.points, id)
}

// Clear drops every entry.
func (g *GridIndex) Clear(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cells = make(map[cellKey]map[string]geo.Point)
	g.points = make(map[string]geo.Point)
	return nil
}

// QueryRadius returns every entry within radiusKm of center, closest first.
func (g *GridIndex) QueryRadius(_ context.Context, center geo.Point, radiusKm float64) ([]Hit, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := geo.ValidateRadius(radiusKm); err != nil {
		return nil, err
	}

	box := geo.Bound(center, radiusKm)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var hits []Hit
	collect := func(cell map[string]geo.Point) {
		for id, p := range cell {
			if d := geo.DistanceKm(center, p); d <= radiusKm+geo.DistanceToleranceKm {
				hits = append(hits, Hit{PostID: id, DistanceKm: d})
			}
		}
	}

	minLat := int(math.Floor(box.MinLat / g.cellDeg))
	maxLat := int(math.Floor(box.MaxLat / g.cellDeg))

	// a sparse grid is cheaper to scan than a wide box is to enumerate
	if g.candidateCells(box, minLat, maxLat) > len(g.cells) {
		for _, cell := range g.cells {
			collect(cell)
		}
	} else {
		for _, lr := range box.LonRanges {
			minLon := int(math.Floor(lr.Min / g.cellDeg))
			maxLon := int(math.Floor(lr.Max / g.cellDeg))
			for la := minLat; la <= maxLat; la++ {
				for lo := minLon; lo <= maxLon; lo++ {
					if cell, ok := g.cells[cellKey{lat: la, lon: lo}]; ok {
						collect(cell)
					}
				}
			}
		}
	}

	sortHits(hits)
	return hits, nil
}

func (g *GridIndex) candidateCells(box geo.BoundingBox, minLat, maxLat int) int {
	rows := maxLat - minLat + 1
	total := 0
	for _, lr := range box.LonRanges {
		cols := int(math.Floor(lr.Max/g.cellDeg)) - int(math.Floor(lr.Min/g.cellDeg)) + 1
		total += rows * cols
	}
	return total
}

package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	tokyoStation    = Point{Lat: 35.681236, Lng: 139.767125}
	shinjukuStation = Point{Lat: 35.690921, Lng: 139.700258}
)

// northOf returns the point meters due north of p along its meridian.
func northOf(p Point, meters float64) Point {
	return Point{Lat: p.Lat + meters/EarthRadiusMeters*180/math.Pi, Lng: p.Lng}
}

func TestDistanceKnownPairs(t *testing.T) {
	assert.InDelta(t, 6134.38, Distance(tokyoStation, shinjukuStation), 0.5)
	assert.InDelta(t, 5574840.46, Distance(Point{51.5007, -0.1246}, Point{40.6892, -74.0445}), 1)
	assert.InDelta(t, math.Pi*EarthRadiusMeters, Distance(Point{0, 0}, Point{0, 180}), 1e-3)
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	pairs := [][2]Point{
		{tokyoStation, shinjukuStation},
		{{-33.8688, 151.2093}, {64.1466, -21.9426}},
		{{89.9, 10}, {-89.9, -170}},
		{{0, 179.9}, {0, -179.9}},
	}
	for _, p := range pairs {
		assert.InDelta(t, Distance(p[0], p[1]), Distance(p[1], p[0]), 1e-6)
		assert.Zero(t, Distance(p[0], p[0]))
		assert.Zero(t, Distance(p[1], p[1]))
	}
}

func TestDistanceAcceptsOutOfRangeCoordinates(t *testing.T) {
	d := Distance(Point{Lat: 120, Lng: 400}, tokyoStation)
	assert.False(t, math.IsNaN(d))
	assert.GreaterOrEqual(t, d, 0.0)
}

func TestFenceBoundaryInclusive(t *testing.T) {
	center := tokyoStation
	edge := northOf(center, 300)
	fence := Fence{Center: center, RadiusMeters: Distance(center, edge)}

	inside, d := fence.Contains(edge)
	assert.True(t, inside, "point exactly at the radius is inside")
	assert.InDelta(t, 300, d, 1e-3)

	inside, _ = fence.Contains(northOf(center, 299))
	assert.True(t, inside)

	inside, d = fence.Contains(northOf(center, 301))
	assert.False(t, inside)
	assert.InDelta(t, 301, d, 1e-3)
}

func TestFenceReportsDistance(t *testing.T) {
	fence := Fence{Center: tokyoStation, RadiusMeters: 300}

	inside, d := fence.Contains(northOf(tokyoStation, 10))
	assert.True(t, inside)
	assert.InDelta(t, 10, d, 1e-3)

	inside, d = fence.Contains(northOf(tokyoStation, 1000))
	assert.False(t, inside)
	assert.InDelta(t, 1000, d, 1e-3)
}

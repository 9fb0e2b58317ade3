package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Fence is a circular region around Center.
type Fence struct {
	Center       Point
	RadiusMeters float64
}

// Distance returns the haversine distance between a and b in meters.
// Out-of-range coordinates are not rejected.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h slightly past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Contains reports whether p lies inside the fence (boundary inclusive)
// together with the measured distance from the center.
func (f Fence) Contains(p Point) (bool, float64) {
	d := Distance(f.Center, p)
	return d <= f.RadiusMeters, d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

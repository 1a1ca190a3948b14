package feed

import (
	"math"

	"github.com/clicknbit/newsapi/pkg/domain"
)

const earthRadiusKm = 6371.0

// distanceKm returns the great-circle distance between two points using the
// haversine formula
func distanceKm(a, b domain.GeoPoint) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// proximityScore maps distance to a closeness weight in (0, 1], halving
// roughly every 8km
func proximityScore(km float64) float64 {
	return 1 / (1 + km/8)
}

package geo

import (
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

// DefaultLimit is how many ranked results are returned when the caller asks for none.
const DefaultLimit = 5

type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// TravelMinutes estimates urban driving time for a distance: short trips
// average 20 km/h, medium 30 km/h and long ones 40 km/h.
func TravelMinutes(km float64) int {
	speed := 40.0
	switch {
	case km < 5:
		speed = 20
	case km <= 20:
		speed = 30
	}
	return int(math.Round(km / speed * 60))
}

// RoundKm rounds to one decimal place for display.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

// Candidate is anything rankable by position. Position may be nil when unknown.
type Candidate[T any] struct {
	Item     T
	Position *Point
}

type Ranked[T any] struct {
	Item T
	// Distance and TravelMinutes are nil when either end has no coordinates.
	Distance      *float64
	TravelMinutes *int
}

// Rank orders candidates by distance from origin, nearest first. Candidates
// without a position go last in their input order. Without an origin the
// input order is kept. The result is cut to limit (DefaultLimit when <= 0).
func Rank[T any](candidates []Candidate[T], origin *Point, limit int) []Ranked[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}

	type scored struct {
		ranked Ranked[T]
		km     float64
		known  bool
	}

	all := make([]scored, len(candidates))
	for i, c := range candidates {
		all[i].ranked.Item = c.Item
		if origin == nil || c.Position == nil {
			continue
		}
		km := Haversine(*origin, *c.Position)
		rounded := RoundKm(km)
		minutes := TravelMinutes(km)
		all[i].km = km
		all[i].known = true
		all[i].ranked.Distance = &rounded
		all[i].ranked.TravelMinutes = &minutes
	}

	if origin != nil {
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].known != all[j].known {
				return all[i].known
			}
			return all[i].known && all[i].km < all[j].km
		})
	}

	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]Ranked[T], len(all))
	for i := range all {
		out[i] = all[i].ranked
	}
	return out
}

package features

import "github.com/golang/geo/s2"

// EarthRadiusKM is the mean earth radius.
const EarthRadiusKM = 6371.0088

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKM
}

// CellToken returns the S2 cell token containing the point at level.
func CellToken(lat, lon float64, level int) string {
	ll := s2.LatLngFromDegrees(lat, lon)
	if !ll.IsValid() {
		return ""
	}
	return s2.CellIDFromLatLng(ll).Parent(level).ToToken()
}

// CellCenter returns the center of the cell with the given token.
func CellCenter(token string) (lat, lon float64, ok bool) {
	id := s2.CellIDFromToken(token)
	if !id.IsValid() {
		return 0, 0, false
	}
	ll := id.LatLng()
	return ll.Lat.Degrees(), ll.Lng.Degrees(), true
}

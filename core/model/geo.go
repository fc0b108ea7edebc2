package model

// Point is a position in longitude/latitude order, matching the GeoJSON and
// map widget conventions.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

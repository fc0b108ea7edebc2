package mapsync

import "github.com/dispatchkit/dispatchboard/core/model"

// Bounds is an axis-aligned lon/lat box given by its south-west and
// north-east corners.
type Bounds struct {
	SW model.Point
	NE model.Point
}

// DefaultBounds frames the default territory when nothing is on the map.
var DefaultBounds = Bounds{
	SW: model.Point{Lon: 44.0, Lat: 25.0},
	NE: model.Point{Lon: 63.5, Lat: 39.8},
}

// singleOffset is the half-width of the box framing a lone point.
const singleOffset = 0.01

// CalcBounds computes the box framing the given points: the default region
// for none, a small fixed-offset box for one, the minimal enclosing box
// otherwise.
func CalcBounds(points []model.Point) Bounds {
	switch len(points) {
	case 0:
		return DefaultBounds
	case 1:
		p := points[0]
		return Bounds{
			SW: model.Point{Lon: p.Lon - singleOffset, Lat: p.Lat - singleOffset},
			NE: model.Point{Lon: p.Lon + singleOffset, Lat: p.Lat + singleOffset},
		}
	}
	b := Bounds{SW: points[0], NE: points[0]}
	for _, p := range points[1:] {
		if p.Lon < b.SW.Lon {
			b.SW.Lon = p.Lon
		}
		if p.Lat < b.SW.Lat {
			b.SW.Lat = p.Lat
		}
		if p.Lon > b.NE.Lon {
			b.NE.Lon = p.Lon
		}
		if p.Lat > b.NE.Lat {
			b.NE.Lat = p.Lat
		}
	}
	return b
}

// PointBounds returns the small fixed-offset box centered on p, used when a
// single order is selected for detail view.
func PointBounds(p model.Point) Bounds {
	return CalcBounds([]model.Point{p})
}

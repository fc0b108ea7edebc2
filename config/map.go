package config

import "fmt"

// MapConfig defines the tile source and framing parameters of the map view.
type MapConfig struct {
	// TileURL is the raster tile template handed to the surface.
	TileURL string  `json:"tile_url"`
	MinZoom float64 `json:"min_zoom"`
	MaxZoom float64 `json:"max_zoom"`
	// FitPadding is the pixel margin kept around framed bounds.
	FitPadding int `json:"fit_padding"`
	// FitMaxZoom caps how far the camera zooms in when framing.
	FitMaxZoom float64 `json:"fit_max_zoom"`
	// FitDurationMS is the camera animation length in milliseconds.
	FitDurationMS int `json:"fit_duration_ms"`
}

// SetDefaults applies the standard framing parameters.
func (c *MapConfig) SetDefaults() {
	if c.MaxZoom == 0 {
		c.MaxZoom = 18
	}
	if c.FitPadding == 0 {
		c.FitPadding = 50
	}
	if c.FitMaxZoom == 0 {
		c.FitMaxZoom = 14
	}
	if c.FitDurationMS == 0 {
		c.FitDurationMS = 1000
	}
}

// Validate checks field coherence.
func (c MapConfig) Validate() error {
	if c.MinZoom < 0 || c.MaxZoom < c.MinZoom {
		return fmt.Errorf("map zoom range %v..%v is invalid", c.MinZoom, c.MaxZoom)
	}
	if c.FitMaxZoom > c.MaxZoom {
		return fmt.Errorf("map.fit_max_zoom %v exceeds max_zoom %v", c.FitMaxZoom, c.MaxZoom)
	}
	return nil
}

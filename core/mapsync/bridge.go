// Package mapsync reconciles the active, coordinate-bearing subset of orders
// and drivers against the markers rendered on a map surface, and computes the
// camera region framing them.
package mapsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/infra/logger"
)

// MarkerRef is an opaque handle to a rendered marker, owned by the surface.
type MarkerRef any

// FitOptions controls how the camera frames a bounds box.
type FitOptions struct {
	Padding  int
	MaxZoom  float64
	Duration time.Duration
}

// PanOptions controls camera pans.
type PanOptions struct {
	Duration time.Duration
}

// Surface is the capability the bridge needs from a map widget. The handle
// is injected explicitly; the bridge never reads a global map instance.
type Surface interface {
	AddMarker(p model.Point, label string, onClick func()) MarkerRef
	RemoveMarker(ref MarkerRef)
	SetMarkerPosition(ref MarkerRef, p model.Point)
	FitBounds(b Bounds, opts FitOptions)
	PanTo(p model.Point, opts PanOptions)
}

// Style describes the tile source handed to the surface on creation.
type Style struct {
	TileURL string
	MinZoom float64
	MaxZoom float64
}

// Options tunes bridge framing behaviour.
type Options struct {
	FitPadding  int
	FitMaxZoom  float64
	FitDuration time.Duration
}

// SetDefaults applies the standard framing parameters.
func (o *Options) SetDefaults() {
	if o.FitPadding == 0 {
		o.FitPadding = 50
	}
	if o.FitMaxZoom == 0 {
		o.FitMaxZoom = 14
	}
	if o.FitDuration == 0 {
		o.FitDuration = time.Second
	}
}

type markerState struct {
	ref MarkerRef
	pos model.Point
}

// Bridge keeps an id-keyed marker table per entity kind and drives the
// camera. All methods are safe for concurrent use.
type Bridge struct {
	mu       sync.Mutex
	surface  Surface
	opts     Options
	log      logger.Logger
	orders   map[int64]*markerState
	drivers  map[int64]*markerState
	selected *int64
	onClick  func(orderID int64)
}

// NewBridge creates a bridge bound to the injected surface.
func NewBridge(surface Surface, opts Options, log logger.Logger) *Bridge {
	opts.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Bridge{
		surface: surface,
		opts:    opts,
		log:     log,
		orders:  make(map[int64]*markerState),
		drivers: make(map[int64]*markerState),
	}
}

// OnMarkerClick registers the callback fired when an order marker is clicked.
func (b *Bridge) OnMarkerClick(fn func(orderID int64)) {
	b.mu.Lock()
	b.onClick = fn
	b.mu.Unlock()
}

// Sync reconciles order markers against the expanded order list: markers for
// inactive or coordinate-less orders are removed, new ones added, and moved
// ones repositioned in place rather than recreated. Afterwards the camera is
// framed on the selected order or the aggregate bounds.
func (b *Bridge) Sync(orders []model.ExpandedOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := make(map[int64]model.ExpandedOrder, len(orders))
	for _, o := range orders {
		if o.Active && o.Location.HasCoordinates() {
			want[o.ID] = o
		}
	}

	for id, st := range b.orders {
		if _, keep := want[id]; !keep {
			b.surface.RemoveMarker(st.ref)
			delete(b.orders, id)
		}
	}
	for id, o := range want {
		pos := o.Location.Point()
		if st, ok := b.orders[id]; ok {
			if st.pos != pos {
				b.surface.SetMarkerPosition(st.ref, pos)
				st.pos = pos
			}
			continue
		}
		id := id
		ref := b.surface.AddMarker(pos, o.Contact.Name, func() { b.clicked(id) })
		b.orders[id] = &markerState{ref: ref, pos: pos}
	}

	b.log.Debugw("order markers synced", map[string]any{"markers": len(b.orders)})
	b.frameLocked()
}

// SyncDrivers reconciles driver markers against live telemetry positions.
func (b *Bridge) SyncDrivers(drivers []model.Driver) {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := make(map[int64]model.Driver, len(drivers))
	for _, d := range drivers {
		if d.GeoJSON != nil {
			want[d.ID] = d
		}
	}
	for id, st := range b.drivers {
		if _, keep := want[id]; !keep {
			b.surface.RemoveMarker(st.ref)
			delete(b.drivers, id)
		}
	}
	for id, d := range want {
		pos := d.GeoJSON.Current
		if st, ok := b.drivers[id]; ok {
			if st.pos != pos {
				b.surface.SetMarkerPosition(st.ref, pos)
				st.pos = pos
			}
			continue
		}
		ref := b.surface.AddMarker(pos, d.Name, nil)
		b.drivers[id] = &markerState{ref: ref, pos: pos}
	}
}

// MoveDriver repositions a single driver marker from a telemetry update. An
// unknown driver is ignored: its marker appears on the next SyncDrivers pass.
func (b *Bridge) MoveDriver(id int64, pos model.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.drivers[id]
	if !ok {
		return
	}
	if st.pos != pos {
		b.surface.SetMarkerPosition(st.ref, pos)
		st.pos = pos
	}
}

// Select frames only the given order's small fixed-offset box. The selection
// sticks until Deselect.
func (b *Bridge) Select(orderID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("mapsync: no marker for order %d", orderID)
	}
	b.selected = &orderID
	b.surface.FitBounds(PointBounds(st.pos), b.fitOptions())
	return nil
}

// Deselect reverts the camera to the aggregate bounds.
func (b *Bridge) Deselect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected = nil
	b.frameLocked()
}

func (b *Bridge) clicked(orderID int64) {
	b.mu.Lock()
	fn := b.onClick
	b.mu.Unlock()
	if fn != nil {
		fn(orderID)
	}
}

func (b *Bridge) fitOptions() FitOptions {
	return FitOptions{
		Padding:  b.opts.FitPadding,
		MaxZoom:  b.opts.FitMaxZoom,
		Duration: b.opts.FitDuration,
	}
}

func (b *Bridge) frameLocked() {
	if b.selected != nil {
		if st, ok := b.orders[*b.selected]; ok {
			b.surface.FitBounds(PointBounds(st.pos), b.fitOptions())
			return
		}
		// selection vanished with its marker
		b.selected = nil
	}
	points := make([]model.Point, 0, len(b.orders))
	for _, st := range b.orders {
		points = append(points, st.pos)
	}
	b.surface.FitBounds(CalcBounds(points), b.fitOptions())
}

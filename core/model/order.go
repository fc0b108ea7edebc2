// Package model defines the domain entities of the dispatch board: orders and
// the contacts, locations and drivers they reference.
package model

import (
	"fmt"
	"time"
)

// OrderType classifies what the driver does at the stop.
type OrderType string

const (
	Delivery OrderType = "Delivery"
	Pickup   OrderType = "Pickup"
	Service  OrderType = "Service"
)

// Priority ranks how urgent an order is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Load describes one piece of cargo attached to an order.
type Load struct {
	LoadNumber int     `json:"loadNumber"`
	Weight     float64 `json:"weight"`
	Volume     float64 `json:"volume"`
}

// TimeWindow is a delivery slot the order must be serviced within.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Order is the central entity of the board. IDs are assigned by the backing
// resource store on creation and are unique.
type Order struct {
	ID          int64        `json:"id,omitempty"`
	OrderType   OrderType    `json:"orderType"`
	Date        string       `json:"date,omitempty"`
	Duration    int          `json:"duration,omitempty"`
	Priority    Priority     `json:"priority"`
	Notes       string       `json:"notes,omitempty"`
	Barcode     string       `json:"barcode,omitempty"`
	LocationID  int64        `json:"locationId"`
	ContactID   int64        `json:"contactId"`
	DriverID    int64        `json:"driverId"`
	Loads       []Load       `json:"loads,omitempty"`
	TimeWindows []TimeWindow `json:"timeWindows,omitempty"`
	Active      bool         `json:"active"`
}

// Key returns the store identity of the order.
func (o Order) Key() int64 { return o.ID }

// Validate checks enum fields and references before a write is attempted.
func (o Order) Validate() error {
	switch o.OrderType {
	case Delivery, Pickup, Service:
	default:
		return fmt.Errorf("unknown order type %q", o.OrderType)
	}
	switch o.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("unknown priority %q", o.Priority)
	}
	if o.DriverID == 0 {
		return fmt.Errorf("driver is required")
	}
	return nil
}

// Contact is the person to notify at the stop.
type Contact struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Validate checks mandatory contact fields.
func (c Contact) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contact name is required")
	}
	return nil
}

// Location is a geocoded address an order is serviced at.
type Location struct {
	ID           int64   `json:"id,omitempty"`
	LocationName string  `json:"locationName"`
	AddressLine1 string  `json:"addressLine1,omitempty"`
	City         string  `json:"city,omitempty"`
	ZipCode      string  `json:"zipCode,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Validate checks mandatory location fields.
func (l Location) Validate() error {
	if l.LocationName == "" {
		return fmt.Errorf("location name is required")
	}
	return nil
}

// HasCoordinates reports whether the location carries a usable position.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// Point returns the location position as a lon/lat point.
func (l Location) Point() Point {
	return Point{Lon: l.Longitude, Lat: l.Latitude}
}

// Telemetry is the live position feed of a driver: the current point, the
// historical path and the route progress in percent.
type Telemetry struct {
	Current  Point   `json:"current"`
	Path     []Point `json:"path,omitempty"`
	Progress float64 `json:"progress"`
}

// Driver performs orders. Skills and vehicle features gate which orders a
// planner may assign.
type Driver struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Skills          []string   `json:"skills,omitempty"`
	VehicleFeatures []string   `json:"vehicleFeatures,omitempty"`
	GeoJSON         *Telemetry `json:"geojson,omitempty"`
}

// ExpandedOrder is an Order with its referenced entities embedded, as
// returned by the _expand query parameters. It is a read-only composite: the
// only local writes it ever sees are optimistic patches.
type ExpandedOrder struct {
	Order
	Contact  Contact  `json:"contact"`
	Location Location `json:"location"`
	Driver   Driver   `json:"driver"`
}

// OrderPatch is a partial-field update for PATCH requests. Nil fields are
// omitted from the request body and left untouched by Apply.
type OrderPatch struct {
	OrderType   *OrderType    `json:"orderType,omitempty"`
	Date        *string       `json:"date,omitempty"`
	Duration    *int          `json:"duration,omitempty"`
	Priority    *Priority     `json:"priority,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	Barcode     *string       `json:"barcode,omitempty"`
	LocationID  *int64        `json:"locationId,omitempty"`
	ContactID   *int64        `json:"contactId,omitempty"`
	DriverID    *int64        `json:"driverId,omitempty"`
	Loads       *[]Load       `json:"loads,omitempty"`
	TimeWindows *[]TimeWindow `json:"timeWindows,omitempty"`
	Active      *bool         `json:"active,omitempty"`
}

// Apply merges the set fields of the patch into a copy of the order.
func (p OrderPatch) Apply(o Order) Order {
	if p.OrderType != nil {
		o.OrderType = *p.OrderType
	}
	if p.Date != nil {
		o.Date = *p.Date
	}
	if p.Duration != nil {
		o.Duration = *p.Duration
	}
	if p.Priority != nil {
		o.Priority = *p.Priority
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.Barcode != nil {
		o.Barcode = *p.Barcode
	}
	if p.LocationID != nil {
		o.LocationID = *p.LocationID
	}
	if p.ContactID != nil {
		o.ContactID = *p.ContactID
	}
	if p.DriverID != nil {
		o.DriverID = *p.DriverID
	}
	if p.Loads != nil {
		o.Loads = *p.Loads
	}
	if p.TimeWindows != nil {
		o.TimeWindows = *p.TimeWindows
	}
	if p.Active != nil {
		o.Active = *p.Active
	}
	return o
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dispatchkit/dispatchboard/config"
	"github.com/dispatchkit/dispatchboard/core/mapsync"
	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/orders"
	"github.com/dispatchkit/dispatchboard/core/query"
)

type countingSurface struct {
	markers int
	fits    int
}

func (s *countingSurface) AddMarker(model.Point, string, func()) mapsync.MarkerRef {
	s.markers++
	return s.markers
}
func (s *countingSurface) RemoveMarker(mapsync.MarkerRef) {}
func (s *countingSurface) SetMarkerPosition(mapsync.MarkerRef, model.Point) {}
func (s *countingSurface) FitBounds(mapsync.Bounds, mapsync.FitOptions) { s.fits++ }
func (s *countingSurface) PanTo(model.Point, mapsync.PanOptions) {}

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.ExpandedOrder{
			{
				Order:    model.Order{ID: 1, Active: true},
				Location: model.Location{ID: 1, LocationName: "dock", Longitude: 2.35, Latitude: 48.85},
			},
		})
	})
	mux.HandleFunc("/drivers", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.Driver{{ID: 9, Name: "drv"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.API.BaseURL = url
	cfg.API.SetDefaults()
	cfg.Map.SetDefaults()
	return cfg
}

func TestRefreshSyncsBridge(t *testing.T) {
	srv := backend(t)
	surface := &countingSurface{}
	svc, err := New(testConfig(srv.URL), surface)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc.Close() }()

	if err := svc.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if surface.markers != 1 {
		t.Fatalf("markers: %d", surface.markers)
	}
	if surface.fits == 0 {
		t.Fatal("camera never framed")
	}
}

func TestRefreshMergesTracksIntoDrivers(t *testing.T) {
	srv := backend(t)
	surface := &countingSurface{}
	svc, err := New(testConfig(srv.URL), surface)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc.Close() }()

	svc.Tracks.Record(9, model.Point{Lon: 3, Lat: 49}, 75, time.Now())
	if err := svc.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	// the order marker plus the driver marker fed from the track store
	if surface.markers != 2 {
		t.Fatalf("markers: %d", surface.markers)
	}
}

func TestRefreshLeavesDriverSlotUntouched(t *testing.T) {
	srv := backend(t)
	svc, err := New(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc.Close() }()

	svc.Tracks.Record(9, model.Point{Lon: 3, Lat: 49}, 75, time.Now())
	if err := svc.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	ver := svc.Orders.Cache().Version(orders.KeyDrivers)
	cached, ok := query.Data[[]model.Driver](svc.Orders.Cache(), orders.KeyDrivers)
	if !ok || len(cached) != 1 {
		t.Fatalf("cached drivers: %v", cached)
	}
	// the backend never sent geojson, so the slot must not carry the
	// track annotation added for the bridge
	if cached[0].GeoJSON != nil {
		t.Fatalf("cached slot annotated in place: %+v", cached[0].GeoJSON)
	}
	if got := svc.Orders.Cache().Version(orders.KeyDrivers); got != ver {
		t.Fatalf("slot version moved without a fetch or update: %d -> %d", ver, got)
	}
}

func TestServiceWithoutSurface(t *testing.T) {
	srv := backend(t)
	svc, err := New(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc.Close() }()
	if err := svc.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Orders.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}
}

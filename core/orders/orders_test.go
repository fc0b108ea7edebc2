package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/query"
)

// fakeClient scripts transport responses per "METHOD path" key and records
// every call in order.
type fakeClient struct {
	handlers map[string]func(body, out any) error
	calls    []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]func(body, out any) error{}}
}

func (f *fakeClient) on(method, path string, h func(body, out any) error) {
	f.handlers[method+" "+path] = h
}

func (f *fakeClient) reply(v any) func(body, out any) error {
	return func(_, out any) error { return respond(out, v) }
}

func (f *fakeClient) do(method, path string, body, out any) error {
	key := method + " " + path
	f.calls = append(f.calls, key)
	if h, ok := f.handlers[key]; ok {
		return h(body, out)
	}
	return fmt.Errorf("unexpected request %s", key)
}

func (f *fakeClient) Get(_ context.Context, path string, out any) error {
	return f.do("GET", path, nil, out)
}

func (f *fakeClient) Post(_ context.Context, path string, body, out any) error {
	return f.do("POST", path, body, out)
}

func (f *fakeClient) Patch(_ context.Context, path string, body, out any) error {
	return f.do("PATCH", path, body, out)
}

func (f *fakeClient) Delete(_ context.Context, path string) error {
	return f.do("DELETE", path, nil, nil)
}

func (f *fakeClient) countCalls(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func respond(out, v any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func newAPI(t *testing.T, client *fakeClient) *API {
	t.Helper()
	cache := query.New(nil, nil)
	pipe := mutation.New(cache, nil, nil)
	return New(client, cache, pipe, nil)
}

func expandedFixture() []model.ExpandedOrder {
	return []model.ExpandedOrder{
		{
			Order:    model.Order{ID: 5, OrderType: model.Delivery, Priority: model.PriorityHigh, Active: false, DriverID: 1},
			Contact:  model.Contact{ID: 1, Name: "Ada"},
			Location: model.Location{ID: 1, LocationName: "Depot", Latitude: 48.85, Longitude: 2.35},
			Driver:   model.Driver{ID: 1, Name: "Marco"},
		},
	}
}

func TestOrdersNormalizedAndCached(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{{ID: 1}, {ID: 5}, {ID: 3}}))
	api := newAPI(t, client)

	st, err := api.Orders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := st.IDs()
	if len(ids) != 3 || ids[0] != 5 || ids[1] != 3 || ids[2] != 1 {
		t.Fatalf("ids not descending: %v", ids)
	}
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := client.countCalls("GET /orders"); n != 1 {
		t.Fatalf("expected cached second read, %d calls", n)
	}
}

func TestChangeActiveOptimisticSuccess(t *testing.T) {
	client := newFakeClient()
	serverState := expandedFixture()
	client.on("GET", "/orders"+expandQuery, func(_, out any) error {
		return respond(out, serverState)
	})
	client.on("PATCH", "/orders/5", func(body, out any) error {
		// the optimistic patch must be visible before the server answers
		var patch model.OrderPatch
		if err := respond(&patch, body); err != nil {
			return err
		}
		serverState[0].Active = *patch.Active
		return respond(out, serverState[0].Order)
	})
	api := newAPI(t, client)
	api.Cache().Subscribe(KeyExpandedOrders)

	if _, err := api.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}
	target := api.AllExpandedOrders()[0]
	if target.Active {
		t.Fatal("fixture should start inactive")
	}
	if _, err := api.ChangeActive(context.Background(), target.Order); err != nil {
		t.Fatal(err)
	}
	if got := api.AllExpandedOrders(); !got[0].Active {
		t.Fatalf("active flag not set after commit: %+v", got[0].Order)
	}
}

func TestChangeActiveOptimisticFailure(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders"+expandQuery, client.reply(expandedFixture()))
	patchErr := errors.New("server rejected")
	var activeDuringCall bool
	api := newAPI(t, client)
	client.on("PATCH", "/orders/5", func(_, _ any) error {
		activeDuringCall = api.AllExpandedOrders()[0].Active
		return patchErr
	})

	if _, err := api.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}
	target := api.AllExpandedOrders()[0]
	_, err := api.ChangeActive(context.Background(), target.Order)
	if !errors.Is(err, patchErr) {
		t.Fatalf("expected patch error, got %v", err)
	}
	if !activeDuringCall {
		t.Fatal("optimistic toggle not visible during the call")
	}
	if got := api.AllExpandedOrders(); got[0].Active {
		t.Fatalf("rollback failed: %+v", got[0].Order)
	}
}

func TestUpdateOrderRollbackExactness(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{
		{ID: 2, Notes: "two", Barcode: "B2"},
		{ID: 1, Notes: "one", Barcode: "B1"},
	}))
	client.on("PATCH", "/orders/2", func(_, _ any) error {
		return errors.New("network down")
	})
	api := newAPI(t, client)
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := api.AllOrders()

	notes := "patched"
	if _, err := api.UpdateOrder(context.Background(), 2, model.OrderPatch{Notes: &notes}); err == nil {
		t.Fatal("expected update failure")
	}
	after := api.AllOrders()
	if len(after) != len(before) {
		t.Fatalf("length changed: %v", after)
	}
	for i := range before {
		if !reflect.DeepEqual(after[i], before[i]) {
			t.Fatalf("rollback not exact at %d: %+v vs %+v", i, after[i], before[i])
		}
	}
}

func TestDeleteOrderRollbackReinsertsSnapshot(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{
		{ID: 3, Notes: "keep"},
		{ID: 2, Notes: "victim"},
		{ID: 1, Notes: "keep"},
	}))
	client.on("DELETE", "/orders/2", func(_, _ any) error {
		return errors.New("conflict")
	})
	api := newAPI(t, client)
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := api.DeleteOrder(context.Background(), 2); err == nil {
		t.Fatal("expected delete failure")
	}
	ids := api.OrderIDs()
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 2 || ids[2] != 1 {
		t.Fatalf("snapshot not reinserted in order: %v", ids)
	}
	if o, _ := api.OrderByID(2); o.Notes != "victim" {
		t.Fatalf("reinserted entity lost fields: %+v", o)
	}
}

func TestDeleteOrderOptimisticRemoval(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{{ID: 2}, {ID: 1}}))
	var lenDuringCall int
	api := newAPI(t, client)
	client.on("DELETE", "/orders/2", func(_, _ any) error {
		lenDuringCall = len(api.AllOrders())
		return nil
	})
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := api.DeleteOrder(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if lenDuringCall != 1 {
		t.Fatalf("optimistic removal not visible during call: len=%d", lenDuringCall)
	}
	if ids := api.OrderIDs(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("ids after delete: %v", ids)
	}
}

func TestAddOrderMergesCreatedAndInvalidatesList(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{{ID: 7}}))
	client.on("GET", "/orders"+expandQuery, client.reply([]model.ExpandedOrder{}))
	client.on("POST", "/orders", func(body, out any) error {
		var o model.Order
		if err := respond(&o, body); err != nil {
			return err
		}
		if !o.Active {
			return errors.New("new orders must be active")
		}
		o.ID = 42
		return respond(out, o)
	})
	api := newAPI(t, client)
	api.Cache().Subscribe(KeyExpandedOrders)
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := api.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}

	created, err := api.AddOrder(context.Background(), model.Order{
		OrderType: model.Delivery, Priority: model.PriorityMedium, DriverID: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 42 {
		t.Fatalf("created id: %d", created.ID)
	}
	if ids := api.OrderIDs(); ids[0] != 42 {
		t.Fatalf("created order not at head: %v", ids)
	}
	if n := client.countCalls("GET /orders" + expandQuery); n != 2 {
		t.Fatalf("list invalidation should refetch expanded slot, %d calls", n)
	}
}

func TestAddOrderValidation(t *testing.T) {
	client := newFakeClient()
	api := newAPI(t, client)
	_, err := api.AddOrder(context.Background(), model.Order{OrderType: "Nope", Priority: model.PriorityLow, DriverID: 1})
	var verr *mutation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("validation must precede any network call: %v", client.calls)
	}
}

func TestCreateOrderCompositeAbort(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders"+expandQuery, client.reply([]model.ExpandedOrder{}))
	client.on("POST", "/contacts", func(body, out any) error {
		return respond(out, model.Contact{ID: 11, Name: "Ada"})
	})
	client.on("POST", "/locations", func(_, _ any) error {
		return errors.New("location rejected")
	})
	api := newAPI(t, client)
	api.Cache().Subscribe(KeyExpandedOrders)
	if _, err := api.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := api.CreateOrder(context.Background(), CreateOrderInput{
		Contact:  model.Contact{Name: "Ada"},
		Location: model.Location{LocationName: "Depot"},
		Order:    model.Order{OrderType: model.Delivery, Priority: model.PriorityLow, DriverID: 1},
	})
	var cerr *mutation.CompositeError
	if !errors.As(err, &cerr) || cerr.Step != "location" {
		t.Fatalf("expected composite failure at location, got %v", err)
	}
	if n := client.countCalls("POST /orders"); n != 0 {
		t.Fatal("order step must not run after a failed step")
	}
	if n := client.countCalls("GET /orders" + expandQuery); n != 1 {
		t.Fatalf("list tag must not be invalidated on abort, %d calls", n)
	}
}

func TestCreateOrderHappyPathWiresIDs(t *testing.T) {
	client := newFakeClient()
	client.on("GET", "/orders", client.reply([]model.Order{}))
	client.on("POST", "/contacts", func(_, out any) error {
		return respond(out, model.Contact{ID: 11, Name: "Ada"})
	})
	client.on("POST", "/locations", func(_, out any) error {
		return respond(out, model.Location{ID: 22, LocationName: "Depot"})
	})
	client.on("POST", "/orders", func(body, out any) error {
		var o model.Order
		if err := respond(&o, body); err != nil {
			return err
		}
		if o.ContactID != 11 || o.LocationID != 22 {
			return fmt.Errorf("foreign keys not wired: %+v", o)
		}
		o.ID = 100
		return respond(out, o)
	})
	api := newAPI(t, client)
	if _, err := api.Orders(context.Background()); err != nil {
		t.Fatal(err)
	}
	created, err := api.CreateOrder(context.Background(), CreateOrderInput{
		Contact:  model.Contact{Name: "Ada"},
		Location: model.Location{LocationName: "Depot"},
		Order:    model.Order{OrderType: model.Pickup, Priority: model.PriorityHigh, DriverID: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 100 || !created.Active {
		t.Fatalf("created: %+v", created)
	}
}

func TestOrderDetailsRefetchOnIDInvalidation(t *testing.T) {
	client := newFakeClient()
	fix := expandedFixture()
	client.on("GET", "/orders/5"+expandQuery, func(_, out any) error {
		return respond(out, fix[0])
	})
	client.on("PATCH", "/orders/5", func(_, out any) error {
		fix[0].Active = true
		return respond(out, fix[0].Order)
	})
	client.on("GET", "/orders"+expandQuery, client.reply(fix))
	api := newAPI(t, client)

	detail, err := api.OrderDetails(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	api.Cache().Subscribe(DetailKey(5))
	if _, err := api.ExpandedOrders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := api.ChangeActive(context.Background(), detail.Order); err != nil {
		t.Fatal(err)
	}
	if n := client.countCalls("GET /orders/5"); n != 2 {
		t.Fatalf("detail slot should refetch on id invalidation, %d calls", n)
	}
}

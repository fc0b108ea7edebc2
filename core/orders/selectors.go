package orders

import (
	"strings"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/core/store"
)

// Selectors read the current cache contents without fetching. They memoize on
// the slot version so unchanged inputs return the previous result, and they
// derive id lists rather than full objects wherever identity is enough for
// the consumer.

type searchKey struct {
	ver    uint64
	search string
}

type driverKey struct {
	ver    uint64
	driver int64
}

var emptyOrders = store.New[model.Order]()

// ordersStore returns the normalized slot contents, defaulting to an empty
// collection when the slot is not populated yet.
func (a *API) ordersStore() *store.Store[model.Order] {
	st, ok := query.Data[*store.Store[model.Order]](a.cache, KeyOrders)
	if !ok {
		return emptyOrders
	}
	return st
}

// AllOrders returns every cached order, newest first.
func (a *API) AllOrders() []model.Order {
	return a.ordersStore().All()
}

// OrderByID looks up one cached order.
func (a *API) OrderByID(id int64) (model.Order, bool) {
	return a.ordersStore().ByID(id)
}

// OrderIDs returns the canonical id sequence.
func (a *API) OrderIDs() []int64 {
	return a.ordersStore().IDs()
}

// OrderIDsBySearch returns the ids of orders whose notes or barcode contain
// the search string, case-insensitively. An empty search returns the full
// canonical id list.
func (a *API) OrderIDsBySearch(search string) []int64 {
	key := searchKey{ver: a.cache.Version(KeyOrders), search: search}
	return a.searchMemo.Get(key, func() []int64 {
		st := a.ordersStore()
		if search == "" {
			return st.IDs()
		}
		needle := strings.ToLower(search)
		var ids []int64
		for _, o := range st.All() {
			if strings.Contains(strings.ToLower(o.Notes), needle) ||
				strings.Contains(strings.ToLower(o.Barcode), needle) {
				ids = append(ids, o.ID)
			}
		}
		return ids
	})
}

// HighPriorityOrderIDs returns the ids of orders with High priority.
func (a *API) HighPriorityOrderIDs() []int64 {
	return a.highMemo.Get(a.cache.Version(KeyOrders), func() []int64 {
		var ids []int64
		for _, o := range a.ordersStore().All() {
			if o.Priority == model.PriorityHigh {
				ids = append(ids, o.ID)
			}
		}
		return ids
	})
}

// OrderIDsByDriver returns the ids of orders assigned to the driver.
func (a *API) OrderIDsByDriver(driverID int64) []int64 {
	key := driverKey{ver: a.cache.Version(KeyOrders), driver: driverID}
	return a.driverMemo.Get(key, func() []int64 {
		var ids []int64
		for _, o := range a.ordersStore().All() {
			if o.DriverID == driverID {
				ids = append(ids, o.ID)
			}
		}
		return ids
	})
}

// AllExpandedOrders returns the expanded slot contents, defaulting to an
// empty slice when not yet loaded.
func (a *API) AllExpandedOrders() []model.ExpandedOrder {
	return a.expandedMemo.Get(a.cache.Version(KeyExpandedOrders), func() []model.ExpandedOrder {
		list, ok := query.Data[[]model.ExpandedOrder](a.cache, KeyExpandedOrders)
		if !ok {
			return []model.ExpandedOrder{}
		}
		return list
	})
}

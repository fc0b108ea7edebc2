// Package orders wires the order endpoints of the resource store into the
// query cache: normalized and expanded list queries, detail queries, and the
// mutations operators trigger from the board.
package orders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/core/selector"
	"github.com/dispatchkit/dispatchboard/core/store"
	"github.com/dispatchkit/dispatchboard/core/transport"
	"github.com/dispatchkit/dispatchboard/infra/logger"
)

// EntityType tags every order-dependent cache slot.
const EntityType = "Order"

const expandQuery = "?_expand=contact&_expand=location&_expand=driver"

// Cache slot keys owned by this package.
var (
	KeyOrders         = query.Key{Endpoint: "/orders"}
	KeyExpandedOrders = query.Key{Endpoint: "/orders", Arg: "expanded"}
	KeyDrivers        = query.Key{Endpoint: "/drivers"}
)

// DetailKey returns the slot key of a single-order detail query.
func DetailKey(id int64) query.Key {
	return query.Key{Endpoint: "/orders/:id", Arg: strconv.FormatInt(id, 10)}
}

// API exposes order queries, mutations and selectors over a shared cache.
type API struct {
	client transport.Client
	cache  *query.Cache
	pipe   *mutation.Pipeline
	log    logger.Logger

	searchMemo   selector.Memo[searchKey, []int64]
	highMemo     selector.Memo[uint64, []int64]
	driverMemo   selector.Memo[driverKey, []int64]
	expandedMemo selector.Memo[uint64, []model.ExpandedOrder]
}

// New registers the order endpoints on the cache and returns the API.
func New(client transport.Client, cache *query.Cache, pipe *mutation.Pipeline, log logger.Logger) *API {
	if log == nil {
		log = logger.NopLogger{}
	}
	a := &API{client: client, cache: cache, pipe: pipe, log: log}

	cache.Register(KeyOrders, func(ctx context.Context) (any, []query.Tag, error) {
		var list []model.Order
		if err := client.Get(ctx, "/orders", &list); err != nil {
			return nil, nil, err
		}
		st := store.New[model.Order]()
		st.SetAll(list)
		return st, query.ListTags(EntityType, st.IDs()), nil
	})

	cache.Register(KeyExpandedOrders, func(ctx context.Context) (any, []query.Tag, error) {
		var list []model.ExpandedOrder
		if err := client.Get(ctx, "/orders"+expandQuery, &list); err != nil {
			return nil, nil, err
		}
		ids := make([]int64, 0, len(list))
		for _, o := range list {
			ids = append(ids, o.ID)
		}
		return list, query.ListTags(EntityType, ids), nil
	})

	cache.Register(KeyDrivers, func(ctx context.Context) (any, []query.Tag, error) {
		var list []model.Driver
		if err := client.Get(ctx, "/drivers", &list); err != nil {
			return nil, nil, err
		}
		return list, nil, nil
	})

	return a
}

// Orders fetches the normalized order collection.
func (a *API) Orders(ctx context.Context) (*store.Store[model.Order], error) {
	return query.Fetch[*store.Store[model.Order]](ctx, a.cache, KeyOrders)
}

// ExpandedOrders fetches the order list with contact, location and driver
// embedded.
func (a *API) ExpandedOrders(ctx context.Context) ([]model.ExpandedOrder, error) {
	return query.Fetch[[]model.ExpandedOrder](ctx, a.cache, KeyExpandedOrders)
}

// Drivers fetches the driver list.
func (a *API) Drivers(ctx context.Context) ([]model.Driver, error) {
	return query.Fetch[[]model.Driver](ctx, a.cache, KeyDrivers)
}

// OrderDetails fetches a single expanded order.
func (a *API) OrderDetails(ctx context.Context, id int64) (model.ExpandedOrder, error) {
	key := DetailKey(id)
	a.cache.Register(key, func(ctx context.Context) (any, []query.Tag, error) {
		var out model.ExpandedOrder
		path := fmt.Sprintf("/orders/%d%s", id, expandQuery)
		if err := a.client.Get(ctx, path, &out); err != nil {
			return nil, nil, err
		}
		return out, []query.Tag{query.IDTag(EntityType, id)}, nil
	})
	return query.Fetch[model.ExpandedOrder](ctx, a.cache, key)
}

// Cache returns the underlying query cache.
func (a *API) Cache() *query.Cache { return a.cache }

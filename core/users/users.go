// Package users covers the legacy flat-user variant of the board: a
// normalized user list with an active toggle and name search.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/core/selector"
	"github.com/dispatchkit/dispatchboard/core/store"
	"github.com/dispatchkit/dispatchboard/core/transport"
	"github.com/dispatchkit/dispatchboard/infra/logger"
)

// EntityType tags every user-dependent cache slot.
const EntityType = "users"

// KeyUsers is the slot of the normalized user list.
var KeyUsers = query.Key{Endpoint: "/users"}

type searchKey struct {
	ver    uint64
	search string
}

// API exposes user queries, the active toggle and selectors.
type API struct {
	client transport.Client
	cache  *query.Cache
	pipe   *mutation.Pipeline
	log    logger.Logger

	searchMemo selector.Memo[searchKey, []int64]
}

// New registers the user endpoint on the cache and returns the API.
func New(client transport.Client, cache *query.Cache, pipe *mutation.Pipeline, log logger.Logger) *API {
	if log == nil {
		log = logger.NopLogger{}
	}
	a := &API{client: client, cache: cache, pipe: pipe, log: log}
	cache.Register(KeyUsers, func(ctx context.Context) (any, []query.Tag, error) {
		var list []model.User
		if err := client.Get(ctx, "/users", &list); err != nil {
			return nil, nil, err
		}
		st := store.New[model.User]()
		st.SetAll(list)
		return st, query.ListTags(EntityType, st.IDs()), nil
	})
	return a
}

// Users fetches the normalized user collection.
func (a *API) Users(ctx context.Context) (*store.Store[model.User], error) {
	return query.Fetch[*store.Store[model.User]](ctx, a.cache, KeyUsers)
}

// ChangeActive toggles the user's active flag with an optimistic patch on the
// normalized slot, rolled back verbatim on failure.
func (a *API) ChangeActive(ctx context.Context, u model.User) (model.User, error) {
	next := !u.Active
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.User]{
		Name: "changeActive",
		Optimistic: func() query.Undo {
			return a.cache.Update(KeyUsers, func(old any) any {
				st := old.(*store.Store[model.User]).Clone()
				st.UpdateOne(u.ID, func(cur model.User) model.User {
					cur.Active = next
					return cur
				})
				return st
			})
		},
		Call: func(ctx context.Context) (model.User, error) {
			var out model.User
			body := struct {
				Active bool `json:"active"`
			}{Active: next}
			err := a.client.Patch(ctx, fmt.Sprintf("/users/%d", u.ID), body, &out)
			return out, err
		},
		Invalidates: []query.Tag{query.IDTag(EntityType, u.ID)},
	})
}

var emptyUsers = store.New[model.User]()

func (a *API) usersStore() *store.Store[model.User] {
	st, ok := query.Data[*store.Store[model.User]](a.cache, KeyUsers)
	if !ok {
		return emptyUsers
	}
	return st
}

// AllUsers returns every cached user, newest first.
func (a *API) AllUsers() []model.User {
	return a.usersStore().All()
}

// UserByID looks up one cached user.
func (a *API) UserByID(id int64) (model.User, bool) {
	return a.usersStore().ByID(id)
}

// UserIDsBySearch returns the ids of users whose name contains the search
// string, case-insensitively. An empty search returns the full id list.
func (a *API) UserIDsBySearch(search string) []int64 {
	key := searchKey{ver: a.cache.Version(KeyUsers), search: search}
	return a.searchMemo.Get(key, func() []int64 {
		st := a.usersStore()
		if search == "" {
			return st.IDs()
		}
		needle := strings.ToLower(search)
		var ids []int64
		for _, u := range st.All() {
			if strings.Contains(strings.ToLower(u.Name), needle) {
				ids = append(ids, u.ID)
			}
		}
		return ids
	})
}

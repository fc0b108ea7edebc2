package orders

import (
	"context"
	"fmt"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/core/store"
)

// AddContact creates a contact. The id is assigned by the resource store and
// echoed back in the result.
func (a *API) AddContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	if c.Name == "" {
		return model.Contact{}, &mutation.ValidationError{Field: "contact.name", Reason: "is required"}
	}
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.Contact]{
		Name: "addContact",
		Call: func(ctx context.Context) (model.Contact, error) {
			var out model.Contact
			err := a.client.Post(ctx, "/contacts", c, &out)
			return out, err
		},
	})
}

// AddLocation creates a location.
func (a *API) AddLocation(ctx context.Context, l model.Location) (model.Location, error) {
	if l.LocationName == "" {
		return model.Location{}, &mutation.ValidationError{Field: "location.locationName", Reason: "is required"}
	}
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.Location]{
		Name: "addLocation",
		Call: func(ctx context.Context) (model.Location, error) {
			var out model.Location
			err := a.client.Post(ctx, "/locations", l, &out)
			return out, err
		},
	})
}

// AddOrder creates an order. New orders are active by default. There is no
// optimistic patch: the id is server-assigned, so the created order is merged
// into the normalized slot on commit and the list tag is invalidated to
// refresh expanded views.
func (a *API) AddOrder(ctx context.Context, o model.Order) (model.Order, error) {
	o.Active = true
	if err := o.Validate(); err != nil {
		return model.Order{}, &mutation.ValidationError{Field: "order", Reason: err.Error()}
	}
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.Order]{
		Name: "addOrder",
		Call: func(ctx context.Context) (model.Order, error) {
			var out model.Order
			err := a.client.Post(ctx, "/orders", o, &out)
			return out, err
		},
		OnSuccess: func(created model.Order) {
			a.cache.Update(KeyOrders, func(old any) any {
				st := old.(*store.Store[model.Order]).Clone()
				st.AddOne(created)
				return st
			})
		},
		Invalidates: []query.Tag{query.ListTag(EntityType)},
	})
}

// CreateOrderInput bundles the three entities of a composite create.
type CreateOrderInput struct {
	Contact  model.Contact
	Location model.Location
	Order    model.Order
}

// CreateOrder performs the three-step composite create: contact, then
// location, then the order referencing both ids. The first failing step
// aborts the rest; no partial order ever reaches the store and the list tag
// stays untouched.
func (a *API) CreateOrder(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	if in.Contact.Name == "" {
		return model.Order{}, &mutation.ValidationError{Field: "contact.name", Reason: "is required"}
	}
	if in.Location.LocationName == "" {
		return model.Order{}, &mutation.ValidationError{Field: "location.locationName", Reason: "is required"}
	}
	in.Order.Active = true
	if err := in.Order.Validate(); err != nil {
		return model.Order{}, &mutation.ValidationError{Field: "order", Reason: err.Error()}
	}

	contact, err := a.AddContact(ctx, in.Contact)
	if err != nil {
		return model.Order{}, &mutation.CompositeError{Step: "contact", Err: err}
	}
	location, err := a.AddLocation(ctx, in.Location)
	if err != nil {
		return model.Order{}, &mutation.CompositeError{Step: "location", Err: err}
	}
	in.Order.ContactID = contact.ID
	in.Order.LocationID = location.ID
	created, err := a.AddOrder(ctx, in.Order)
	if err != nil {
		return model.Order{}, &mutation.CompositeError{Step: "order", Err: err}
	}
	return created, nil
}

// UpdateOrder patches the order fields and optimistically merges the changes
// into the normalized slot. On failure the slot reverts verbatim.
func (a *API) UpdateOrder(ctx context.Context, id int64, patch model.OrderPatch) (model.Order, error) {
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.Order]{
		Name: "updateOrder",
		Optimistic: func() query.Undo {
			return a.cache.Update(KeyOrders, func(old any) any {
				st := old.(*store.Store[model.Order]).Clone()
				st.UpdateOne(id, patch.Apply)
				return st
			})
		},
		Call: func(ctx context.Context) (model.Order, error) {
			var out model.Order
			err := a.client.Patch(ctx, fmt.Sprintf("/orders/%d", id), patch, &out)
			return out, err
		},
		Invalidates: []query.Tag{query.IDTag(EntityType, id)},
	})
}

// ChangeActive toggles the active flag of an order. The optimistic patch
// targets the expanded slot directly, since detail and map views read from
// it. The normalized slot is refreshed through the id tag on commit.
func (a *API) ChangeActive(ctx context.Context, o model.Order) (model.Order, error) {
	next := !o.Active
	return mutation.Run(ctx, a.pipe, mutation.Effect[model.Order]{
		Name: "changeActive",
		Optimistic: func() query.Undo {
			return a.cache.Update(KeyExpandedOrders, func(old any) any {
				prev := old.([]model.ExpandedOrder)
				patched := make([]model.ExpandedOrder, len(prev))
				copy(patched, prev)
				for i := range patched {
					if patched[i].ID == o.ID {
						patched[i].Active = !patched[i].Active
						break
					}
				}
				return patched
			})
		},
		Call: func(ctx context.Context) (model.Order, error) {
			var out model.Order
			body := model.OrderPatch{Active: &next}
			err := a.client.Patch(ctx, fmt.Sprintf("/orders/%d", o.ID), body, &out)
			return out, err
		},
		Invalidates: []query.Tag{query.IDTag(EntityType, o.ID)},
	})
}

// DeleteOrder removes the order, optimistically dropping it from the
// normalized slot. On failure the undo reinserts the last-known snapshot.
func (a *API) DeleteOrder(ctx context.Context, id int64) error {
	_, err := mutation.Run(ctx, a.pipe, mutation.Effect[struct{}]{
		Name: "deleteOrder",
		Optimistic: func() query.Undo {
			return a.cache.Update(KeyOrders, func(old any) any {
				st := old.(*store.Store[model.Order]).Clone()
				st.RemoveOne(id)
				return st
			})
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.client.Delete(ctx, fmt.Sprintf("/orders/%d", id))
		},
		Invalidates: []query.Tag{query.IDTag(EntityType, id)},
	})
	return err
}

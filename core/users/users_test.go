package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/mutation"
	"github.com/dispatchkit/dispatchboard/core/query"
)

type fakeClient struct {
	users    []model.User
	patchErr error
	gets     int
}

func (f *fakeClient) Get(_ context.Context, path string, out any) error {
	if path != "/users" {
		return fmt.Errorf("unexpected path %s", path)
	}
	f.gets++
	b, _ := json.Marshal(f.users)
	return json.Unmarshal(b, out)
}

func (f *fakeClient) Post(context.Context, string, any, any) error {
	return errors.New("not supported")
}

func (f *fakeClient) Patch(_ context.Context, path string, body, out any) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	var patch struct {
		Active bool `json:"active"`
	}
	b, _ := json.Marshal(body)
	if err := json.Unmarshal(b, &patch); err != nil {
		return err
	}
	for i := range f.users {
		if fmt.Sprintf("/users/%d", f.users[i].ID) == path {
			f.users[i].Active = patch.Active
			b, _ := json.Marshal(f.users[i])
			return json.Unmarshal(b, out)
		}
	}
	return fmt.Errorf("unknown user %s", path)
}

func (f *fakeClient) Delete(context.Context, string) error {
	return errors.New("not supported")
}

func newAPI(t *testing.T, client *fakeClient) *API {
	t.Helper()
	cache := query.New(nil, nil)
	return New(client, cache, mutation.New(cache, nil, nil), nil)
}

func TestUsersNormalized(t *testing.T) {
	client := &fakeClient{users: []model.User{{ID: 1, Name: "Ann"}, {ID: 3, Name: "Bob"}, {ID: 2, Name: "Cleo"}}}
	api := newAPI(t, client)
	st, err := api.Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := st.IDs()
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 1 {
		t.Fatalf("ids: %v", ids)
	}
	if _, err := api.Users(context.Background()); err != nil {
		t.Fatal(err)
	}
	if client.gets != 1 {
		t.Fatalf("second read should hit the cache, gets=%d", client.gets)
	}
}

func TestChangeActiveOptimisticCommit(t *testing.T) {
	client := &fakeClient{users: []model.User{{ID: 4, Name: "Dora", Active: false}}}
	api := newAPI(t, client)
	if _, err := api.Users(context.Background()); err != nil {
		t.Fatal(err)
	}
	u, _ := api.UserByID(4)
	if _, err := api.ChangeActive(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if got, _ := api.UserByID(4); !got.Active {
		t.Fatalf("toggle lost: %+v", got)
	}
}

func TestChangeActiveRollback(t *testing.T) {
	client := &fakeClient{users: []model.User{{ID: 4, Name: "Dora", Active: true}}}
	api := newAPI(t, client)
	if _, err := api.Users(context.Background()); err != nil {
		t.Fatal(err)
	}
	client.patchErr = errors.New("offline")
	u, _ := api.UserByID(4)
	if _, err := api.ChangeActive(context.Background(), u); err == nil {
		t.Fatal("expected failure")
	}
	if got, _ := api.UserByID(4); !got.Active {
		t.Fatalf("rollback failed: %+v", got)
	}
}

func TestUserIDsBySearch(t *testing.T) {
	client := &fakeClient{users: []model.User{
		{ID: 1, Name: "Marta Keller"},
		{ID: 2, Name: "Jonas Beck"},
		{ID: 3, Name: "Martina Voss"},
	}}
	api := newAPI(t, client)
	if _, err := api.Users(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := api.UserIDsBySearch(""); len(got) != 3 || got[0] != 3 {
		t.Fatalf("empty search: %v", got)
	}
	got := api.UserIDsBySearch("mart")
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("search: %v", got)
	}
}

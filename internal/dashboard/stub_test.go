package dashboard

import (
	"context"
	"sync"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// stubAPI counts calls per operation; unset hooks answer with empty values.
type stubAPI struct {
	mu    sync.Mutex
	calls map[string]int

	list       func(ctx context.Context) ([]userapi.User, error)
	search     func(ctx context.Context, name string) ([]userapi.User, error)
	get        func(ctx context.Context, id int64) (userapi.User, error)
	create     func(ctx context.Context, d userapi.Draft) (userapi.User, error)
	update     func(ctx context.Context, id int64, req userapi.UpdateRequest) (userapi.User, error)
	deactivate func(ctx context.Context, id int64) error
	remove     func(ctx context.Context, id int64) error
	info       func(ctx context.Context) (userapi.AppInfo, error)
}

func (s *stubAPI) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

func (s *stubAPI) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubAPI) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubAPI) ListUsers(ctx context.Context) ([]userapi.User, error) {
	s.record("list")
	if s.list != nil {
		return s.list(ctx)
	}
	return []userapi.User{}, nil
}

func (s *stubAPI) SearchUsers(ctx context.Context, name string) ([]userapi.User, error) {
	s.record("search")
	if s.search != nil {
		return s.search(ctx, name)
	}
	return []userapi.User{}, nil
}

func (s *stubAPI) GetUser(ctx context.Context, id int64) (userapi.User, error) {
	s.record("get")
	if s.get != nil {
		return s.get(ctx, id)
	}
	return userapi.User{}, userapi.ErrNotFound
}

func (s *stubAPI) CreateUser(ctx context.Context, d userapi.Draft) (userapi.User, error) {
	s.record("create")
	if s.create != nil {
		return s.create(ctx, d)
	}
	return userapi.User{ID: 1, Username: d.Username, Email: d.Email, FirstName: d.FirstName, LastName: d.LastName, IsActive: d.Active()}, nil
}

func (s *stubAPI) UpdateUser(ctx context.Context, id int64, req userapi.UpdateRequest) (userapi.User, error) {
	s.record("update")
	if s.update != nil {
		return s.update(ctx, id, req)
	}
	d := req.Draft
	return userapi.User{ID: id, Username: d.Username, Email: d.Email, FirstName: d.FirstName, LastName: d.LastName, IsActive: d.Active()}, nil
}

func (s *stubAPI) DeactivateUser(ctx context.Context, id int64) error {
	s.record("deactivate")
	if s.deactivate != nil {
		return s.deactivate(ctx, id)
	}
	return nil
}

func (s *stubAPI) DeleteUser(ctx context.Context, id int64) error {
	s.record("delete")
	if s.remove != nil {
		return s.remove(ctx, id)
	}
	return nil
}

func (s *stubAPI) GetAppInfo(ctx context.Context) (userapi.AppInfo, error) {
	s.record("info")
	if s.info != nil {
		return s.info(ctx)
	}
	return userapi.AppInfo{Application: "User Management", Version: "1.0.0", Status: "running"}, nil
}

func testDraft(username string) userapi.Draft {
	d := userapi.NewDraft()
	d.Username = username
	d.Email = username + "@example.com"
	d.FirstName = "Test"
	d.LastName = "User"
	return d
}

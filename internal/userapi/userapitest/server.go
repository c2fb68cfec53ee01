// Package userapitest provides an in-memory Users service for tests.
package userapitest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/userdesk/internal/platform/httpx"
	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// ServiceName is reported by the health and info endpoints.
const ServiceName = "user-service"

// Server is a fake Users service speaking the same HTTP contract as the real one.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[int64]userapi.User
	nextID   int64
	failures map[string]int
	hits     map[string]int
	now      func() time.Time
	validate *validator.Validate
}

// New starts a fake service that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[int64]userapi.User),
		nextID:   1,
		failures: make(map[string]int),
		hits:     make(map[string]int),
		now:      time.Now,
		validate: validator.New(),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	s.handle(r, http.MethodGet, "/api/users", s.listUsers)
	s.handle(r, http.MethodPost, "/api/users", s.createUser)
	s.handle(r, http.MethodGet, "/api/users/active", s.listActive)
	s.handle(r, http.MethodGet, "/api/users/search", s.search)
	s.handle(r, http.MethodGet, "/api/users/count/active", s.countActive)
	s.handle(r, http.MethodGet, "/api/users/username/{username}", s.getByUsername)
	s.handle(r, http.MethodGet, "/api/users/{id}", s.getUser)
	s.handle(r, http.MethodPut, "/api/users/{id}", s.updateUser)
	s.handle(r, http.MethodDelete, "/api/users/{id}", s.deleteUser)
	s.handle(r, http.MethodPut, "/api/users/{id}/deactivate", s.deactivate)
	s.handle(r, http.MethodGet, "/api/v1/info", s.info)
	s.handle(r, http.MethodGet, "/api/v1/health", s.health)
	return r
}

func (s *Server) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	route := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		status := s.failures[route]
		s.mu.Unlock()
		if status != 0 {
			httpx.Problem(w, status, http.StatusText(status), "injected failure")
			return
		}
		h(w, req)
	}))
}

// Fail makes route ("GET /api/users") answer with status until Recover is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// Recover clears every injected failure.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests served on any route.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// Seed stores drafts directly, bypassing the HTTP layer.
func (s *Server) Seed(drafts ...userapi.Draft) []userapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]userapi.User, 0, len(drafts))
	for _, d := range drafts {
		created = append(created, s.insertLocked(d))
	}
	return created
}

// User returns the stored user with id.
func (s *Server) User(id int64) (userapi.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) insertLocked(d userapi.Draft) userapi.User {
	now := s.now()
	u := userapi.User{
		ID:        s.nextID,
		Username:  d.Username,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		IsActive:  d.Active(),
		CreatedAt: userapi.NewTimestamp(now),
		UpdatedAt: userapi.NewTimestamp(now),
	}
	s.users[u.ID] = u
	s.nextID++
	return u
}

func (s *Server) sortedLocked(keep func(userapi.User) bool) []userapi.User {
	out := make([]userapi.User, 0, len(s.users))
	for _, u := range s.users {
		if keep == nil || keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) takenLocked(username, email string, except int64) bool {
	for id, u := range s.users {
		if id == except {
			continue
		}
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

func (s *Server) activeCountLocked() int64 {
	var n int64
	for _, u := range s.users {
		if u.IsActive {
			n++
		}
	}
	return n
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := s.sortedLocked(nil)
	s.mu.Unlock()
	httpx.JSON(w, http.StatusOK, users)
}

func (s *Server) listActive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := s.sortedLocked(func(u userapi.User) bool { return u.IsActive })
	s.mu.Unlock()
	httpx.JSON(w, http.StatusOK, users)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	needle := strings.ToLower(r.URL.Query().Get("name"))
	s.mu.Lock()
	users := s.sortedLocked(func(u userapi.User) bool {
		return strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle)
	})
	s.mu.Unlock()
	httpx.JSON(w, http.StatusOK, users)
}

func (s *Server) countActive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := s.activeCountLocked()
	s.mu.Unlock()
	httpx.JSON(w, http.StatusOK, n)
}

func (s *Server) getByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			httpx.JSON(w, http.StatusOK, u)
			return
		}
	}
	httpx.RespondError(w, httpx.NotFound("User not found with username: "+username))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	u, found := s.users[id]
	s.mu.Unlock()
	if !found {
		notFound(w, id)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var d userapi.Draft
	if err := httpx.DecodeJSON(r, &d); err != nil {
		httpx.RespondError(w, httpx.Invalid("malformed body"))
		return
	}
	if err := s.validate.Struct(d); err != nil {
		httpx.RespondError(w, httpx.Invalid(err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.takenLocked(d.Username, d.Email, 0) {
		httpx.RespondError(w, httpx.Duplicate("Username or email already exists"))
		return
	}
	httpx.JSON(w, http.StatusCreated, s.insertLocked(d))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req userapi.UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.Invalid("malformed body"))
		return
	}
	if err := s.validate.Struct(req.Draft); err != nil {
		httpx.RespondError(w, httpx.Invalid(err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, found := s.users[id]
	if !found {
		notFound(w, id)
		return
	}
	if s.takenLocked(req.Username, req.Email, id) {
		httpx.RespondError(w, httpx.Duplicate("Username or email already exists"))
		return
	}
	existing.Username = req.Username
	existing.Email = req.Email
	existing.FirstName = req.FirstName
	existing.LastName = req.LastName
	existing.IsActive = req.Active()
	existing.UpdatedAt = userapi.NewTimestamp(s.now())
	s.users[id] = existing
	httpx.JSON(w, http.StatusOK, existing)
}

func (s *Server) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !found {
		notFound(w, id)
		return
	}
	u.IsActive = false
	u.UpdatedAt = userapi.NewTimestamp(s.now())
	s.users[id] = u
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[id]; !found {
		notFound(w, id)
		return
	}
	delete(s.users, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := s.activeCountLocked()
	s.mu.Unlock()
	httpx.JSON(w, http.StatusOK, userapi.AppInfo{
		Application: ServiceName,
		Version:     "1.0.0",
		Timestamp:   userapi.NewTimestamp(s.now()),
		Status:      "running",
		TotalUsers:  total,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, userapi.Health{
		Status:    "UP",
		Service:   ServiceName,
		Timestamp: userapi.NewTimestamp(s.now()),
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.Invalid("invalid id"))
		return 0, false
	}
	return id, true
}

func notFound(w http.ResponseWriter, id int64) {
	httpx.RespondError(w, httpx.NotFound("User not found with id: "+strconv.FormatInt(id, 10)))
}

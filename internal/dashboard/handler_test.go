package dashboard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdesk/internal/shared"
	"github.com/odyssey-erp/userdesk/internal/userapi"
	"github.com/odyssey-erp/userdesk/internal/userapi/userapitest"
	"github.com/odyssey-erp/userdesk/internal/view"
	_ "github.com/odyssey-erp/userdesk/testing"
)

// browser drives the handler with one persistent session, like a single tab.
type browser struct {
	t      *testing.T
	srv    *userapitest.Server
	store  *Store
	sess   *shared.Session
	router http.Handler
}

func newBrowser(t *testing.T, usernames ...string) *browser {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "userdesk_session", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	engine, err := view.NewEngine()
	require.NoError(t, err)

	srv, api := seededService(t, usernames...)
	store := NewStore(client, time.Hour, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, api, store, engine, shared.NewCSRFManager("secret"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)

	return &browser{t: t, srv: srv, store: store, sess: sess, router: r}
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func (b *browser) page() string {
	rec := b.get("/")
	require.Equal(b.t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func userForm(username, email, first, last string, active bool) url.Values {
	v := url.Values{
		"username":  {username},
		"email":     {email},
		"firstName": {first},
		"lastName":  {last},
	}
	if active {
		v.Set("isActive", "on")
	}
	return v
}

func TestDashboardMountRendersUsersAndTotal(t *testing.T) {
	b := newBrowser(t, "alice", "bob", "carol")

	body := b.page()
	assert.Contains(t, body, "Total Users: 3")
	assert.Equal(t, 3, strings.Count(body, "data-user-id="))
	assert.NotContains(t, body, "error-banner")
	assert.Contains(t, body, "Add New User")
	assert.Equal(t, 1, b.srv.Hits("GET /api/users"))

}

func TestDashboardRefreshFetchesFreshData(t *testing.T) {
	b := newBrowser(t, "alice")

	body := b.page()
	assert.Equal(t, 1, strings.Count(body, "data-user-id="))
	assert.Contains(t, body, "Total Users: 1")

	b.srv.Seed(testDraft("zed"))

	body = b.page()
	assert.Equal(t, 2, b.srv.Hits("GET /api/users"))
	assert.Equal(t, 2, b.srv.Hits("GET /api/v1/info"))
	assert.Equal(t, 2, strings.Count(body, "data-user-id="))
	assert.Contains(t, body, "Total Users: 2")
}

func TestDashboardRedirectShowsIntentResultOnce(t *testing.T) {
	b := newBrowser(t, "alice", "bob")
	b.page()

	b.post("/search", url.Values{"q": {"nomatch"}})
	body := b.page()
	assert.Contains(t, body, EmptyListMessage)
	assert.Equal(t, 1, b.srv.Hits("GET /api/users"), "redirect target renders the search result")

	body = b.page()
	assert.Equal(t, 2, b.srv.Hits("GET /api/users"))
	assert.Equal(t, 2, strings.Count(body, "data-user-id="))
	assert.NotContains(t, body, `action="/search/clear"`)
}

func TestDashboardMountFailureShowsRetry(t *testing.T) {
	b := newBrowser(t, "alice")
	b.srv.Fail("GET /api/users", http.StatusInternalServerError)

	body := b.page()
	assert.Contains(t, body, MsgLoadFailed)
	assert.Contains(t, body, `action="/retry"`)
	assert.Contains(t, body, EmptyListMessage)

	b.srv.Recover()
	rec := b.post("/retry", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	body = b.page()
	assert.NotContains(t, body, MsgLoadFailed)
	assert.Equal(t, 1, strings.Count(body, "data-user-id="))
}

func TestDashboardSearchAndClear(t *testing.T) {
	b := newBrowser(t, "alice", "bob")
	b.page()

	rec := b.post("/search", url.Values{"q": {"   "}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, b.srv.Hits("GET /api/users/search"))

	b.post("/search", url.Values{"q": {"nomatch"}})
	body := b.page()
	assert.Equal(t, 1, b.srv.Hits("GET /api/users/search"))
	assert.Contains(t, body, EmptyListMessage)
	assert.Contains(t, body, `value="nomatch"`)
	assert.Contains(t, body, `action="/search/clear"`)

	b.post("/search/clear", nil)
	body = b.page()
	assert.Equal(t, 2, strings.Count(body, "data-user-id="))
	assert.NotContains(t, body, `action="/search/clear"`)
}

func TestDashboardCreateUser(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()

	rec := b.get("/users/new")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, b.page(), "Create New User")

	rec = b.post("/users", userForm("dave", "dave@example.com", "Dave", "Brown", true))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := b.page()
	assert.Contains(t, body, "User created")
	assert.NotContains(t, body, "Create New User")
	assert.Contains(t, body, "Dave Brown")
	assert.Contains(t, body, "Total Users: 2")
}

func TestDashboardCreateBlockedClientSide(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()
	b.get("/users/new")

	rec := b.post("/users", userForm("ab", "ab@example.com", "A", "B", true))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username must be at least 3 characters")
	assert.Contains(t, rec.Body.String(), `value="ab"`)
	assert.Zero(t, b.srv.Hits("POST /api/users"))
}

func TestDashboardCreateConflictKeepsDraft(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()
	b.get("/users/new")

	rec := b.post("/users", userForm("alice", "new@example.com", "Alice", "Again", true))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MsgConflict)
	assert.Contains(t, body, `value="new@example.com"`)
	assert.Contains(t, body, "Create New User")

	assert.Contains(t, b.page(), `value="new@example.com"`, "draft survives the next render")
}

func TestDashboardEditUser(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()

	rec := b.get("/users/1/edit")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	body := b.page()
	assert.Contains(t, body, "Edit User")
	assert.Contains(t, body, `action="/users/1"`)

	rec = b.post("/users/1", userForm("alice", "alice@example.com", "Alice", "Cooper", false))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	saved, ok := b.srv.User(1)
	require.True(t, ok)
	assert.Equal(t, "Cooper", saved.LastName)
	assert.False(t, saved.IsActive)
	assert.Contains(t, b.page(), "User updated")
}

func TestDashboardEditUnknownUser(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()

	rec := b.get("/users/99/edit")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, b.page(), "User not found")
}

func TestDashboardCancelForm(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()
	b.get("/users/new")

	rec := b.post("/users/form/cancel", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, b.page(), "Create New User")
}

func TestDashboardSubmitInFlightRejected(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()
	b.get("/users/new")

	unlock, err := b.store.LockSubmit(context.Background(), b.sess.ID)
	require.NoError(t, err)
	defer unlock()

	rec := b.post("/users", userForm("dave", "dave@example.com", "Dave", "Brown", true))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MsgSubmitInFlight)
	assert.Contains(t, body, "Saving...")
	assert.NotContains(t, body, ">Create User<")
	assert.Contains(t, body, `value="dave" required minlength="3" maxlength="50" disabled`)
	assert.Contains(t, body, `class="save-btn" disabled`)
	assert.Zero(t, b.srv.Hits("POST /api/users"))
}

func TestDashboardDeleteNeedsConfirmation(t *testing.T) {
	b := newBrowser(t, "alice", "bob")
	b.page()

	rec := b.get("/users/1/delete")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), PromptDelete)
	assert.Contains(t, rec.Body.String(), `name="confirm" value="yes"`)

	rec = b.post("/users/1/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, b.srv.Hits("DELETE /api/users/{id}"))

	rec = b.post("/users/1/delete", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok := b.srv.User(1)
	assert.False(t, ok)

	body := b.page()
	assert.Contains(t, body, "User deleted")
	assert.Equal(t, 1, strings.Count(body, "data-user-id="))
}

func TestDashboardDeactivate(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()

	rec := b.get("/users/1/deactivate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), PromptDeactivate)

	b.post("/users/1/deactivate", url.Values{"confirm": {"yes"}})
	saved, ok := b.srv.User(1)
	require.True(t, ok)
	assert.False(t, saved.IsActive)

	body := b.page()
	assert.Contains(t, body, "User deactivated")
	assert.NotContains(t, body, `href="/users/1/deactivate"`)
}

func TestDashboardDeactivateFailureShowsError(t *testing.T) {
	b := newBrowser(t, "alice")
	b.page()
	b.srv.Fail("PUT /api/users/{id}/deactivate", http.StatusInternalServerError)

	rec := b.post("/users/1/deactivate", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, b.page(), MsgDeactivateFailed)
}

func TestDashboardRejectsInvalidID(t *testing.T) {
	b := newBrowser(t)
	for _, path := range []string{"/users/abc/edit", "/users/0/delete", "/users/-1/deactivate"} {
		rec := b.get(path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	b := newBrowser(t)
	r := chi.NewRouter()
	h := NewHandler(nil, userapi.NewClient(b.srv.URL), b.store, nil, shared.NewCSRFManager("secret"))
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardTemplateFailureIsServerError(t *testing.T) {
	b := newBrowser(t, "alice")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), b.sess)))
		})
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewHandler(logger, userapi.NewClient(b.srv.URL), b.store, nil, shared.NewCSRFManager("secret")).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Total Users")
}

package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "userdesk_session", "session-secret", time.Hour, false), mr
}

func TestSessionRoundTripKeepsFlashUntilPopped(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set(CSRFSessionKey, "token")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "User created"})

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.True(t, mr.Exists("session:"+sess.ID))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, strings.HasPrefix(cookies[0].Value, sess.ID+"."))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	again, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)
	assert.Equal(t, "token", again.Get(CSRFSessionKey))

	flash := again.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "User created", flash.Message)
	assert.Nil(t, again.PopFlash())
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "userdesk_session", Value: "../../etc"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc", sess.ID)
}

func TestSessionRejectsUnsignedOrResignedCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	other := NewSessionManager(sm.client, "userdesk_session", "other-secret", time.Hour, false)
	for name, value := range map[string]string{
		"bare id":      sess.ID,
		"bad sig":      sess.ID + ".AAAA",
		"other secret": other.cookieValue(sess.ID),
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "userdesk_session", Value: value})
		got, err := sm.Load(ctx, req)
		require.NoError(t, err, name)
		assert.NotEqual(t, sess.ID, got.ID, name)
		assert.Empty(t, got.Get("k"), name)
	}
}

func TestSessionDeleteMarksDirty(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	again, err := sm.Load(ctx, req)
	require.NoError(t, err)
	again.Delete("k")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), again))

	third, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, third.ID)
	assert.Empty(t, third.Get("k"))
}

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := newSession("abc")

	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, "x"), ErrCSRFTokenMissing)

	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, "other"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	m := NewCSRFManager("secret")
	owner := newSession("owner")
	token, err := m.EnsureToken(context.Background(), owner)
	require.NoError(t, err)

	thief := newSession("thief")
	thief.Set(CSRFSessionKey, token)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), thief, token), ErrCSRFTokenMismatch)

	_, err = m.EnsureToken(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSessionMissing)

	_, err = RequireSession(context.Background())
	assert.ErrorIs(t, err, ErrSessionMissing)
	got, err := RequireSession(ContextWithSession(context.Background(), owner))
	require.NoError(t, err)
	assert.Same(t, owner, got)
}

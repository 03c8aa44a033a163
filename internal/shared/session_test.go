package shared_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

const cookieName = "test_session"

func newManager(t *testing.T, secret string) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, shared.SessionOptions{
		CookieName: cookieName,
		TTL:        time.Hour,
		Secret:     secret,
	}), mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func loginSession(t *testing.T, sm *shared.SessionManager, actorID int64) (*shared.Session, *http.Cookie) {
	t.Helper()
	sess, err := sm.Load(t.Context(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sm.Rotate(sess)
	sess.SetActor(actorID)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(t.Context(), rec, sess))
	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	return sess, cookie
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t, "secret")
	sess, cookie := loginSession(t, sm, 42)

	assert.True(t, mr.Exists("rbac:session:"+sess.ID))
	assert.True(t, strings.HasPrefix(cookie.Value, sess.ID+"."))
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
	assert.Equal(t, time.Hour, mr.TTL("rbac:session:"+sess.ID))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(t.Context(), next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	id, ok := loaded.ActorID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.WithinDuration(t, time.Now(), loaded.IssuedAt(), time.Minute)
}

func TestSessionRejectsForgedCookies(t *testing.T) {
	sm, _ := newManager(t, "secret")
	sess, cookie := loginSession(t, sm, 42)
	other, _ := newManager(t, "other-secret")

	cases := map[string]struct {
		manager *shared.SessionManager
		value   string
	}{
		"unsigned":      {sm, sess.ID},
		"bad signature": {sm, sess.ID + ".AAAA"},
		"chosen id":     {sm, "attacker-chosen"},
		"wrong secret":  {other, cookie.Value},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: cookieName, Value: tc.value})
			loaded, err := tc.manager.Load(context.Background(), req)
			require.NoError(t, err)
			assert.NotEqual(t, sess.ID, loaded.ID)
			_, ok := loaded.ActorID()
			assert.False(t, ok)
		})
	}
}

func TestSessionEmptyNotStored(t *testing.T) {
	sm, mr := newManager(t, "secret")
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	assert.Nil(t, sessionCookie(t, rec))
	assert.Empty(t, mr.Keys())
}

func TestSessionRotateAndDestroy(t *testing.T) {
	sm, mr := newManager(t, "secret")
	ctx := context.Background()
	sess, _ := loginSession(t, sm, 7)
	oldID := sess.ID

	sm.Rotate(sess)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("rbac:session:"+oldID))
	assert.True(t, mr.Exists("rbac:session:"+sess.ID))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.Empty(t, mr.Keys())
	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestSessionMiddlewareCommitsBeforeHeaders(t *testing.T) {
	sm, mr := newManager(t, "secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var sessionID string
	handler := sm.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		require.NotNil(t, sess)
		sess.SetActor(7)
		sessionID = sess.ID
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, sessionCookie(t, rec))
	assert.True(t, mr.Exists("rbac:session:"+sessionID))
}

func TestNilSessionHasNoActor(t *testing.T) {
	var sess *shared.Session
	_, ok := sess.ActorID()
	assert.False(t, ok)
}

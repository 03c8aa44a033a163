package auth_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/memstore"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

type authEnv struct {
	router   http.Handler
	repo     *auth.MemoryRepository
	store    *memstore.Store
	service  *rbac.Service
	redis    *miniredis.Miniredis
	cookie   string
	editorID int64
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	ctx := t.Context()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, shared.SessionOptions{CookieName: "test_session", TTL: time.Hour, Secret: "test-secret"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memstore.New()
	rbacService := rbac.NewService(store)
	require.NoError(t, rbacService.EnsureCatalog(ctx, rbac.FullCatalog()))
	editor, err := rbacService.CreateRole(ctx, "Editor", "")
	require.NoError(t, err)
	read, err := rbacService.GetPermission(ctx, "article.read")
	require.NoError(t, err)
	_, err = rbacService.GrantPermission(ctx, editor.ID, read.ID)
	require.NoError(t, err)

	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := auth.NewMemoryRepository()
	repo.PutUser(auth.User{ID: 1, Email: "editor@test.local", PasswordHash: string(hashed), IsActive: true, RoleID: &editor.ID})
	repo.PutUser(auth.User{ID: 2, Email: "gone@test.local", PasswordHash: string(hashed), IsActive: false})
	store.PutActor(1, true, &editor.ID)
	store.PutActor(2, false, nil)

	handler := auth.NewHandler(logger, auth.NewService(repo), sessions, rbacService)
	r := chi.NewRouter()
	r.Use(sessions.Middleware(logger))
	r.Use(auth.ActorMiddleware(rbacService, logger))
	r.Route("/auth", handler.MountRoutes)

	return &authEnv{router: r, repo: repo, store: store, service: rbacService, redis: mr, cookie: sessions.CookieName(), editorID: editor.ID}
}

func (e *authEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *authEnv) sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == e.cookie {
			return c
		}
	}
	return nil
}

func TestLoginAndMe(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"editor@test.local","password":"correctpass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := env.sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, 1, env.repo.Sessions())

	rec = env.do(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID          int64    `json:"id"`
		Active      bool     `json:"active"`
		RoleID      *int64   `json:"role_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, int64(1), me.ID)
	assert.True(t, me.Active)
	require.NotNil(t, me.RoleID)
	assert.Equal(t, env.editorID, *me.RoleID)
	assert.Equal(t, []string{"article.read"}, me.Permissions)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"editor@test.local","password":"wrongpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, env.sessionCookie(rec))

	rec = env.do(t, http.MethodPost, "/auth/login", `{"email":"nobody@test.local","password":"correctpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"gone@test.local","password":"correctpass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "account_inactive", problem.Code)
}

func TestMeRequiresLogin(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"editor@test.local","password":"correctpass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := env.sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = env.do(t, http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.redis.Keys())
	assert.Zero(t, env.repo.Sessions())

	rec = env.do(t, http.MethodGet, "/auth/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorMiddlewareDeactivatedAfterLogin(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"editor@test.local","password":"correctpass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := env.sessionCookie(rec)

	env.store.PutActor(1, false, &env.editorID)
	rec = env.do(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)
}

func TestPruneSessions(t *testing.T) {
	repo := auth.NewMemoryRepository()
	svc := auth.NewService(repo)
	require.NoError(t, svc.RegisterSession(t.Context(), "expired", 1, -time.Minute, "", ""))
	require.NoError(t, svc.RegisterSession(t.Context(), "live", 1, time.Hour, "", ""))

	n, err := svc.PruneSessions(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, repo.Sessions())
}

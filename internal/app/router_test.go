package app_test

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
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/app"
	"github.com/odyssey-erp/odyssey-rbac/internal/observability"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/jobs"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

type server struct {
	handler http.Handler
	backend *app.MemoryBackend
}

func newServer(t *testing.T, tweaks ...func(*app.Config)) *server {
	t.Helper()
	ctx := t.Context()
	backend, err := app.NewMemoryBackend(ctx, "admin@test.local", "adminpass1")
	require.NoError(t, err)
	editor := backend.Roles[app.RoleEditor]
	_, err = backend.AddUser(2, "editor@test.local", "Editor", "editorpass", true, &editor.ID)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &app.Config{
		AppEnv:             "test",
		AppRequestTimeout:  5 * time.Second,
		RateLimitPerMinute: 1000,
		SessionTTL:         time.Hour,
		SessionSecret:      "router-test-secret",
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	rt, err := app.Build(app.BuildParams{
		Logger: logger,
		Config: cfg,
		Backend: backend.Backend,
		Redis:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Metrics: observability.NewMetrics(),
		Jobs:    jobs.NewHandler(nil, logger),
	})
	require.NoError(t, err)
	return &server{handler: rt.Handler, backend: backend}
}

func (s *server) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "odyssey_session" {
			return c
		}
	}
	t.Fatal("session cookie missing")
	return nil
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem.Code
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRouteIsProblem(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestAdminSurfaceRequiresLogin(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/api/admin/roles/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", problemCode(t, rec))
}

func TestAdministratorManagesRoles(t *testing.T) {
	s := newServer(t)
	cookie := s.login(t, "admin@test.local", "adminpass1")

	rec := s.do(http.MethodGet, "/api/admin/roles/", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Roles, 3)

	rec = s.do(http.MethodPost, "/api/admin/roles/", `{"name":"Auditor"}`, cookie)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, s.backend.Trail.Entries(), 1)

	rec = s.do(http.MethodGet, "/api/admin/users/", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/jobs/health", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEditorIsDeniedAdminSurface(t *testing.T) {
	s := newServer(t)
	cookie := s.login(t, "editor@test.local", "editorpass")

	rec := s.do(http.MethodGet, "/api/admin/permissions/", "", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "permission_denied", problem.Code)
	assert.Equal(t, "permission.manage", problem.Codename)

	rec = s.do(http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, []string{"article.create", "article.read", "article.update"}, me.Permissions)
}

func TestDecisionsAreExported(t *testing.T) {
	s := newServer(t)
	cookie := s.login(t, "admin@test.local", "adminpass1")
	s.do(http.MethodGet, "/api/admin/roles/", "", cookie)
	s.do(http.MethodGet, "/api/admin/roles/", "")

	rec := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `odyssey_authz_decisions_total{outcome="allow"} 1`)
	assert.Contains(t, body, `odyssey_authz_decisions_total{outcome="unauthenticated"} 1`)
}

func TestLoginAttemptsAreRateLimited(t *testing.T) {
	s := newServer(t, func(cfg *app.Config) { cfg.LoginRateLimitPerMinute = 2 })
	body := `{"email":"admin@test.local","password":"wrong-password"}`
	for range 2 {
		rec := s.do(http.MethodPost, "/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(http.MethodPost, "/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

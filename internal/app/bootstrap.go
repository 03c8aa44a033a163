package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/observability"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/memstore"
	"github.com/odyssey-erp/odyssey-rbac/internal/roles"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/users"
	"github.com/odyssey-erp/odyssey-rbac/jobs"
)

// Default role names created by SeedRoles.
const (
	RoleAdministrator = "Administrator"
	RoleEditor        = "Editor"
	RoleViewer        = "Viewer"
)

// RoleSeed describes a role and the codenames it should hold.
type RoleSeed struct {
	Name        string
	Description string
	Codenames   []string
}

// DefaultRoleSeeds returns the stock roles.
func DefaultRoleSeeds() []RoleSeed {
	var all, reads []string
	for _, in := range rbac.FullCatalog() {
		codename := rbac.DeriveCodename(in.Resource, in.Action)
		all = append(all, codename)
		if in.Action == rbac.ActionRead {
			reads = append(reads, codename)
		}
	}
	return []RoleSeed{
		{Name: RoleAdministrator, Description: "Full access", Codenames: all},
		{Name: RoleEditor, Description: "Writes articles", Codenames: []string{"article.read", "article.create", "article.update"}},
		{Name: RoleViewer, Description: "Read-only access", Codenames: reads},
	}
}

// SeedRoles registers the catalog and creates or completes every seed role.
// Re-running it is a no-op.
func SeedRoles(ctx context.Context, svc *rbac.Service, seeds []RoleSeed) (map[string]rbac.Role, error) {
	if err := svc.EnsureCatalog(ctx, rbac.FullCatalog()); err != nil {
		return nil, fmt.Errorf("seed: catalog: %w", err)
	}
	existing, err := svc.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: list roles: %w", err)
	}
	byName := make(map[string]rbac.Role, len(existing))
	for _, role := range existing {
		byName[strings.ToLower(role.Name)] = role
	}

	out := make(map[string]rbac.Role, len(seeds))
	for _, seed := range seeds {
		role, ok := byName[strings.ToLower(seed.Name)]
		if !ok {
			role, err = svc.CreateRole(ctx, seed.Name, seed.Description)
			if err != nil {
				return nil, fmt.Errorf("seed: role %s: %w", seed.Name, err)
			}
		}
		for _, codename := range seed.Codenames {
			perm, err := svc.GetPermission(ctx, codename)
			if err != nil {
				return nil, fmt.Errorf("seed: permission %s: %w", codename, err)
			}
			if _, err := svc.GrantPermission(ctx, role.ID, perm.ID); err != nil && !errors.Is(err, rbac.ErrAlreadyGranted) {
				return nil, fmt.Errorf("seed: grant %s to %s: %w", codename, seed.Name, err)
			}
		}
		out[seed.Name] = role
	}
	return out, nil
}

// Backend bundles the persistence used by the HTTP surface.
type Backend struct {
	RBAC  rbac.Repository
	Auth  auth.Repository
	Users users.RepositoryPort
	Audit shared.AuditRecorder
}

// PostgresBackend returns the pgx backed persistence.
func PostgresBackend(pool *pgxpool.Pool) Backend {
	return Backend{
		RBAC:  rbac.NewRepository(pool),
		Auth:  auth.NewRepository(pool),
		Users: users.NewRepository(pool),
		Audit: shared.NewAuditLogger(pool),
	}
}

// MemoryBackend is a seeded in-process backend for local runs and tests.
type MemoryBackend struct {
	Backend
	Store   *memstore.Store
	Logins  *auth.MemoryRepository
	Members *users.MemoryRepository
	Trail   *shared.MemoryAudit
	Roles   map[string]rbac.Role
}

// NewMemoryBackend seeds the stock roles and one administrator account.
func NewMemoryBackend(ctx context.Context, adminEmail, adminPassword string) (*MemoryBackend, error) {
	store := memstore.New()
	roleMap, err := SeedRoles(ctx, rbac.NewService(store), DefaultRoleSeeds())
	if err != nil {
		return nil, err
	}
	m := &MemoryBackend{
		Store:   store,
		Logins:  auth.NewMemoryRepository(),
		Members: users.NewMemoryRepository(store),
		Trail:   &shared.MemoryAudit{},
		Roles:   roleMap,
	}
	m.Backend = Backend{RBAC: store, Auth: m.Logins, Users: m.Members, Audit: m.Trail}
	admin := roleMap[RoleAdministrator]
	if _, err := m.AddUser(1, adminEmail, "Administrator", adminPassword, true, &admin.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// AddUser registers an account in every in-memory store.
func (m *MemoryBackend) AddUser(id int64, email, name, password string, active bool, roleID *int64) (auth.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.User{}, fmt.Errorf("seed: hash password: %w", err)
	}
	u := auth.User{ID: id, Email: strings.ToLower(email), Name: name, PasswordHash: hash, IsActive: active, RoleID: roleID}
	m.Logins.PutUser(u)
	m.Members.PutUser(users.User{ID: id, Email: u.Email, Name: name})
	m.Store.PutActor(id, active, roleID)
	return u, nil
}

// BuildParams collects what Build needs beyond the backend.
type BuildParams struct {
	Logger    *slog.Logger
	Config    *Config
	Backend   Backend
	Redis     *redis.Client
	Metrics   *observability.Metrics
	Jobs      *jobs.Handler
	AccessLog bool
}

// Runtime is the assembled application.
type Runtime struct {
	Handler   http.Handler
	RBAC      *rbac.Service
	Auth      *auth.Service
	Evaluator *rbac.Evaluator
}

// Build wires services, handlers and the router.
func Build(params BuildParams) (*Runtime, error) {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	if params.Config == nil {
		return nil, errors.New("app: config is required")
	}
	table, err := rbac.NewOperationTable(rbac.DefaultOperations())
	if err != nil {
		return nil, err
	}

	var observer rbac.DecisionObserver
	if params.Metrics != nil {
		observer = params.Metrics
	}
	rbacService := rbac.NewService(params.Backend.RBAC)
	evaluator := rbac.NewEvaluator(rbacService, observer)
	guard := rbac.Middleware{
		Evaluator:  evaluator,
		Operations: table,
		Logger:     params.Logger,
		Respond:    httpx.RespondError,
	}

	sessions := shared.NewSessionManager(params.Redis, shared.SessionOptions{
		CookieName: "odyssey_session",
		TTL:        params.Config.SessionTTL,
		Secure:     params.Config.IsProduction(),
		Secret:     params.Config.SessionSecret,
	})
	authService := auth.NewService(params.Backend.Auth)

	router := NewRouter(RouterParams{
		Logger:             params.Logger,
		Config:             params.Config,
		SessionManager:     sessions,
		Actors:             rbacService,
		AuthHandler:        auth.NewHandler(params.Logger, authService, sessions, rbacService),
		RolesHandler:       roles.NewHandler(params.Logger, roles.NewService(rbacService, params.Backend.Audit, params.Logger), guard),
		UsersHandler:       users.NewHandler(params.Logger, users.NewService(params.Backend.Users, rbacService, params.Backend.Audit, params.Logger), guard),
		PermissionsHandler: rbac.NewPermissionsHandler(params.Logger, rbacService, guard),
		JobHandler:         params.Jobs,
		RBAC:               guard,
		Metrics:            params.Metrics,
		AccessLog:          params.AccessLog,
	})
	return &Runtime{Handler: router, RBAC: rbacService, Auth: authService, Evaluator: evaluator}, nil
}

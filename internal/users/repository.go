package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users with their role name, ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.email, u.name, u.is_active, u.role_id, COALESCE(r.name, ''), u.last_login, u.created_at, u.updated_at
FROM users u
LEFT JOIN roles r ON r.id = u.role_id
ORDER BY u.email`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.RoleID, &u.RoleName, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// ActorStore supplies the live role binding of in-memory users.
type ActorStore interface {
	GetActor(ctx context.Context, actorID int64) (rbac.Actor, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
}

// MemoryRepository lists users held in memory. Role and active state are
// read from the actor store on every call.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[int64]User
	actors ActorStore
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository(actors ActorStore) *MemoryRepository {
	return &MemoryRepository{users: make(map[int64]User), actors: actors}
}

// PutUser registers or replaces a user.
func (m *MemoryRepository) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// ListUsers returns all users ordered by email.
func (m *MemoryRepository) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	m.mu.Unlock()

	for i := range out {
		actor, err := m.actors.GetActor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].IsActive = actor.Active
		out[i].RoleID = actor.RoleID
		out[i].RoleName = ""
		if actor.RoleID != nil {
			role, err := m.actors.GetRole(ctx, *actor.RoleID)
			if err != nil && !errors.Is(err, rbac.ErrRoleNotFound) {
				return nil, err
			}
			out[i].RoleName = role.Name
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

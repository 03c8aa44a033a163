// Package memstore is an in-process rbac.Repository. Every constraint the
// PostgreSQL schema declares is checked inside the same critical section as
// the write it guards, so concurrent callers observe the same outcomes.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

type grantKey struct {
	roleID       int64
	permissionID int64
}

type actorRecord struct {
	active bool
	roleID *int64
}

// Store holds roles, permissions, grants and actor bindings in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	now func() time.Time

	nextID      int64
	roles       map[int64]rbac.Role
	permissions map[int64]rbac.Permission
	grants      map[grantKey]rbac.RolePermission
	actors      map[int64]actorRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		roles:       make(map[int64]rbac.Role),
		permissions: make(map[int64]rbac.Permission),
		grants:      make(map[grantKey]rbac.RolePermission),
		actors:      make(map[int64]actorRecord),
	}
}

// PutActor registers or replaces an actor known to the identity subsystem.
func (s *Store) PutActor(id int64, active bool, roleID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[id] = actorRecord{active: active, roleID: copyID(roleID)}
}

// GrantCount reports the number of stored grants for a pair (0 or 1).
func (s *Store) GrantCount(roleID, permissionID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.grants[grantKey{roleID, permissionID}]; ok {
		return 1
	}
	return 0
}

// WithTx serialises fn against other transactions.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, rbac.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, txStore{s})
}

type txStore struct{ *Store }

func (t txStore) WithTx(ctx context.Context, fn func(context.Context, rbac.Repository) error) error {
	return fn(ctx, t)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(entity string, format string, args ...any) error {
	return &rbac.Error{Kind: rbac.KindNotFound, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// InsertPermission stores a permission enforcing codename and resource/action uniqueness.
func (s *Store) InsertPermission(_ context.Context, p rbac.Permission) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Resource == p.Resource && existing.Action == p.Action {
			return rbac.Permission{}, &rbac.Error{Kind: rbac.KindDuplicateResourceAction, Entity: rbac.EntityPermission, Message: "permission for this resource and action already exists"}
		}
		if existing.Codename == p.Codename {
			return rbac.Permission{}, &rbac.Error{Kind: rbac.KindDuplicateCodename, Entity: rbac.EntityPermission, Message: "permission codename already exists"}
		}
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	s.permissions[p.ID] = p
	return p, nil
}

// GetPermissionByID fetches a permission.
func (s *Store) GetPermissionByID(_ context.Context, id int64) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, notFound(rbac.EntityPermission, "permission %d not found", id)
	}
	return p, nil
}

// GetPermissionByCodename fetches a permission by codename.
func (s *Store) GetPermissionByCodename(_ context.Context, codename string) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Codename == codename {
			return p, nil
		}
	}
	return rbac.Permission{}, notFound(rbac.EntityPermission, "permission %s not found", codename)
}

// ListPermissions returns permissions ordered by resource then action.
func (s *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

// UpdatePermissionDescription changes a description.
func (s *Store) UpdatePermissionDescription(_ context.Context, id int64, description string) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, notFound(rbac.EntityPermission, "permission %d not found", id)
	}
	p.Description = description
	s.permissions[id] = p
	return p, nil
}

// DeletePermission removes a permission no role holds.
func (s *Store) DeletePermission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return notFound(rbac.EntityPermission, "permission %d not found", id)
	}
	for key := range s.grants {
		if key.permissionID == id {
			return &rbac.Error{Kind: rbac.KindPermissionInUse, Entity: rbac.EntityPermission, Message: "permission is granted to roles"}
		}
	}
	delete(s.permissions, id)
	return nil
}

// CountPermissionGrants counts roles holding the permission.
func (s *Store) CountPermissionGrants(_ context.Context, permissionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.grants {
		if key.permissionID == permissionID {
			n++
		}
	}
	return n, nil
}

func (s *Store) nameTaken(name string, except int64) bool {
	for id, r := range s.roles {
		if id != except && r.Name == name {
			return true
		}
	}
	return false
}

// InsertRole stores a role enforcing name uniqueness.
func (s *Store) InsertRole(_ context.Context, name, description string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(name, 0) {
		return rbac.Role{}, &rbac.Error{Kind: rbac.KindDuplicateName, Entity: rbac.EntityRole, Message: "role name already exists"}
	}
	now := s.now()
	role := rbac.Role{ID: s.id(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	s.roles[role.ID] = role
	return role, nil
}

// GetRole fetches a role.
func (s *Store) GetRole(_ context.Context, id int64) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, notFound(rbac.EntityRole, "role %d not found", id)
	}
	return role, nil
}

// ListRoles returns roles ordered by name.
func (s *Store) ListRoles(_ context.Context) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateRole renames a role.
func (s *Store) UpdateRole(_ context.Context, id int64, name, description string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, notFound(rbac.EntityRole, "role %d not found", id)
	}
	if s.nameTaken(name, id) {
		return rbac.Role{}, &rbac.Error{Kind: rbac.KindDuplicateName, Entity: rbac.EntityRole, Message: "role name already exists"}
	}
	role.Name = name
	role.Description = description
	role.UpdatedAt = s.now()
	s.roles[id] = role
	return role, nil
}

// DeleteRole removes an unreferenced role and cascades its grants.
func (s *Store) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return notFound(rbac.EntityRole, "role %d not found", id)
	}
	for _, a := range s.actors {
		if a.roleID != nil && *a.roleID == id {
			return &rbac.Error{Kind: rbac.KindRoleInUse, Entity: rbac.EntityRole, Message: "role is assigned to actors"}
		}
	}
	for key := range s.grants {
		if key.roleID == id {
			delete(s.grants, key)
		}
	}
	delete(s.roles, id)
	return nil
}

// InsertGrant stores a grant; the existence and uniqueness checks share the write lock.
func (s *Store) InsertGrant(_ context.Context, roleID, permissionID int64) (rbac.RolePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return rbac.RolePermission{}, notFound(rbac.EntityRole, "role %d not found", roleID)
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return rbac.RolePermission{}, notFound(rbac.EntityPermission, "permission %d not found", permissionID)
	}
	key := grantKey{roleID, permissionID}
	if _, ok := s.grants[key]; ok {
		return rbac.RolePermission{}, &rbac.Error{Kind: rbac.KindAlreadyGranted, Entity: rbac.EntityGrant, Message: "permission already granted to role"}
	}
	grant := rbac.RolePermission{ID: s.id(), RoleID: roleID, PermissionID: permissionID, CreatedAt: s.now()}
	s.grants[key] = grant
	return grant, nil
}

// DeleteGrant removes a grant, reporting whether it existed.
func (s *Store) DeleteGrant(_ context.Context, roleID, permissionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{roleID, permissionID}
	if _, ok := s.grants[key]; !ok {
		return false, nil
	}
	delete(s.grants, key)
	return true, nil
}

// ListGrants returns the role's grants ordered by codename.
func (s *Store) ListGrants(_ context.Context, roleID int64) ([]rbac.RolePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.RolePermission, 0)
	for key, g := range s.grants {
		if key.roleID != roleID {
			continue
		}
		g.Permission = s.permissions[key.permissionID]
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission.Codename < out[j].Permission.Codename })
	return out, nil
}

// RoleCodenames returns the role's codenames.
func (s *Store) RoleCodenames(_ context.Context, roleID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.roles[roleID]; !ok {
		return nil, notFound(rbac.EntityRole, "role %d not found", roleID)
	}
	out := make([]string, 0)
	for key := range s.grants {
		if key.roleID == roleID {
			out = append(out, s.permissions[key.permissionID].Codename)
		}
	}
	return out, nil
}

// SetActorRole replaces or clears the actor's role.
func (s *Store) SetActorRole(_ context.Context, actorID int64, roleID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actor, ok := s.actors[actorID]
	if !ok {
		return notFound(rbac.EntityActor, "actor %d not found", actorID)
	}
	if roleID != nil {
		if _, ok := s.roles[*roleID]; !ok {
			return notFound(rbac.EntityRole, "role %d not found", *roleID)
		}
	}
	actor.roleID = copyID(roleID)
	s.actors[actorID] = actor
	return nil
}

// GetActor returns the stored actor fields.
func (s *Store) GetActor(_ context.Context, actorID int64) (rbac.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[actorID]
	if !ok {
		return rbac.Actor{}, notFound(rbac.EntityActor, "actor %d not found", actorID)
	}
	return rbac.Actor{ID: actorID, Active: a.active, RoleID: copyID(a.roleID)}, nil
}

// CountActors counts actors bound to the role.
func (s *Store) CountActors(_ context.Context, roleID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.actors {
		if a.roleID != nil && *a.roleID == roleID {
			n++
		}
	}
	return n, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

var _ rbac.Repository = (*Store)(nil)

package rbac

import "context"

// AssignRole binds roleID to the actor, replacing any prior role.
func (s *Service) AssignRole(ctx context.Context, actorID, roleID int64) error {
	if actorID <= 0 {
		return notFound(EntityActor, "actor %d not found", actorID)
	}
	if roleID <= 0 {
		return notFound(EntityRole, "role %d not found", roleID)
	}
	return s.repo.SetActorRole(ctx, actorID, &roleID)
}

// UnassignRole clears the actor's role.
func (s *Service) UnassignRole(ctx context.Context, actorID int64) error {
	if actorID <= 0 {
		return notFound(EntityActor, "actor %d not found", actorID)
	}
	return s.repo.SetActorRole(ctx, actorID, nil)
}

// CountActors returns how many actors are bound to the role.
func (s *Service) CountActors(ctx context.Context, roleID int64) (int, error) {
	return s.repo.CountActors(ctx, roleID)
}

// LookupActor loads the evaluator snapshot of a known actor.
func (s *Service) LookupActor(ctx context.Context, actorID int64) (Actor, error) {
	actor, err := s.repo.GetActor(ctx, actorID)
	if err != nil {
		return Actor{}, err
	}
	actor.Authenticated = true
	return actor, nil
}

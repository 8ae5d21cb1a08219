package authz

import "context"

// Role identifies the kind of caller performing an operation.
type Role string

const (
	// RoleAdministrator has global rights over inquiries and offers.
	RoleAdministrator Role = "administrator"
	// RoleTrader is scoped to inquiries the trader created.
	RoleTrader Role = "trader"
	// RoleSystem is used by internal sweeps (offer expiry), never by callers.
	RoleSystem Role = "system"
)

// Actor is the authenticated principal threaded through every operation.
// Identity is always explicit, never ambient session state.
type Actor struct {
	ID   int64
	Role Role
}

// System returns the internal actor used by scheduled jobs.
func System() Actor {
	return Actor{ID: 0, Role: RoleSystem}
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

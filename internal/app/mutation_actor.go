package app

import (
	"context"
	"strings"

	"github.com/hylla/dealboard/internal/domain"
)

// ActorType identifies who requested a board mutation.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// MutationActor carries normalized caller identity metadata for mutation attribution.
type MutationActor struct {
	ActorID   string
	ActorType ActorType
}

// mutationActorContextKey stores context keys for mutation actor metadata.
type mutationActorContextKey struct{}

// WithMutationActor attaches normalized mutation-actor identity metadata to context.
func WithMutationActor(ctx context.Context, actor MutationActor) context.Context {
	actor = normalizeMutationActor(actor)
	return context.WithValue(ctx, mutationActorContextKey{}, actor)
}

// MutationActorFromContext returns normalized mutation-actor metadata when present.
func MutationActorFromContext(ctx context.Context) (MutationActor, bool) {
	raw := ctx.Value(mutationActorContextKey{})
	actor, ok := raw.(MutationActor)
	if !ok {
		return MutationActor{}, false
	}
	actor = normalizeMutationActor(actor)
	if actor.ActorID == "" {
		return MutationActor{}, false
	}
	return actor, true
}

// normalizeMutationActor trims and canonicalizes mutation actor metadata.
func normalizeMutationActor(actor MutationActor) MutationActor {
	actor.ActorID = strings.TrimSpace(actor.ActorID)
	actor.ActorType = ActorType(strings.TrimSpace(strings.ToLower(string(actor.ActorType))))
	switch actor.ActorType {
	case ActorTypeUser, ActorTypeAgent, ActorTypeSystem:
	default:
		actor.ActorType = ActorTypeUser
	}
	return actor
}

// attributeEvent stamps actor metadata from context onto one change event.
func attributeEvent(ctx context.Context, event *domain.ChangeEvent) {
	actor, ok := MutationActorFromContext(ctx)
	if !ok {
		return
	}
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	event.Metadata["actor_id"] = actor.ActorID
	event.Metadata["actor_type"] = string(actor.ActorType)
}

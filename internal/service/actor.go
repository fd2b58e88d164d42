package service

import (
	"context"

	"github.com/noah-isme/formador-scheduler/internal/models"
)

// Actor identifies who triggered an operation, for audit records.
type Actor struct {
	UserID    string
	Role      models.UserRole
	RequestID string
	IPAddress string
	UserAgent string
}

type actorKey struct{}

// WithActor stores actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored on ctx, or the zero Actor.
func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}

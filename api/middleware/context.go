package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxEmail  contextKey = "email"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithCaller injects the authenticated identity into the context.
func WithCaller(ctx context.Context, userID, email, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	return context.WithValue(ctx, ctxRole, role)
}

// CallerFromContext rebuilds the access caller seeded by the auth middleware.
// The boolean is false when the context carries no parseable identity.
func CallerFromContext(ctx context.Context) (access.Caller, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return access.Caller{}, false
	}
	role, err := enums.ParseRole(RoleFromContext(ctx))
	if err != nil {
		return access.Caller{}, false
	}
	return access.Caller{
		UserID: userID,
		Email:  EmailFromContext(ctx),
		Role:   role,
	}, true
}

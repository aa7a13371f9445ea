package gate

import "context"

type contextKey string

const roleKey contextKey = "caller_role"

// WithRole attaches the verified caller role to the request context. Only the
// operator-token middleware writes this; the role never comes from a plain
// header.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFromContext retrieves the verified caller role, "" when anonymous.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxProfileID ctxKey = iota
	ctxEmail
	ctxRole
	ctxCenterID
)

// WithSubject stores the verified token subject.
func WithSubject(ctx context.Context, profileID, email string) context.Context {
	ctx = context.WithValue(ctx, ctxProfileID, profileID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	return ctx
}

// WithRole stores the role and center resolved from the staff profile.
func WithRole(ctx context.Context, role, centerID string) context.Context {
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxCenterID, centerID)
	return ctx
}

func ProfileID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxProfileID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("profile_id not in context")
}

func Email(ctx context.Context) string {
	s, _ := ctx.Value(ctxEmail).(string)
	return s
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// CenterID returns the caller's center. Admins usually have none.
func CenterID(ctx context.Context) string {
	s, _ := ctx.Value(ctxCenterID).(string)
	return s
}

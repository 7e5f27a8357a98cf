package model

import (
	"context"
	"fmt"
	"strings"
)

// ExpiryPolicy decides what happens to an attempt that overran the time budget.
type ExpiryPolicy string

const (
	// ExpiryScore grades an expired attempt but never lets it pass.
	ExpiryScore ExpiryPolicy = "score"
	// ExpiryReject refuses to grade an expired attempt.
	ExpiryReject ExpiryPolicy = "reject"
)

// ParseExpiryPolicy maps a config string onto a policy.
func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch p := ExpiryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpiryScore, ExpiryReject:
		return p, nil
	case "":
		return ExpiryScore, nil
	}
	return "", fmt.Errorf("unknown expiry policy %q", s)
}

// EngineConfig holds runtime options of the exam engine.
type EngineConfig struct {
	ExpiryPolicy ExpiryPolicy
	// CrossSetRepeats lets the same bank question appear in several
	// generated sets of one exam.
	CrossSetRepeats bool
}

// DefaultEngineConfig scores expired attempts and lets sets share questions.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{ExpiryPolicy: ExpiryScore, CrossSetRepeats: true}
}

type userCtxKey struct{}

// ContextWithUser stores the requester identity in the request context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserFromContext returns the requester identity, or "" when absent.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userCtxKey{}).(string)
	return u
}

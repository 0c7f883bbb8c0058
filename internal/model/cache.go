package model

import (
	"context"

	"github.com/google/uuid"
)

// CacheStamp is the invalidation generation a cache entry was computed
// under. All moves on InvalidateAll, User on Invalidate for that user.
type CacheStamp struct {
	All  uint64 `json:"all"`
	User uint64 `json:"user"`
}

// PermissionCache keeps the effective permission keys per user.
//
// Get reports a hit only for entries stamped with the current generation and
// always returns that generation. Callers compute on a miss and pass the
// stamp from Get to Set, so a fill that raced with an invalidation is never
// served.
type PermissionCache interface {
	Get(ctx context.Context, userID uuid.UUID) (keys []string, stamp CacheStamp, ok bool, err error)
	Set(ctx context.Context, userID uuid.UUID, stamp CacheStamp, keys []string) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

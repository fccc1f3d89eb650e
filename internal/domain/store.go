package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ActivityStore mirrors the activity trail into durable storage. It is an
// audit copy only; the in-memory ring stays authoritative for callers.
type ActivityStore interface {
	Append(ctx context.Context, item ActivityItem) error
	List(ctx context.Context, opts ListOpts) ([]ActivityItem, error)
}

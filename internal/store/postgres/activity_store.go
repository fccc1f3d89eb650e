package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// ActivityStore mirrors activity items into the activity_log table. It is
// registered as an orchestrator sink; the in-memory ring stays the source
// callers read from.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a new ActivityStore backed by the given pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Name implements domain.ActivitySink.
func (s *ActivityStore) Name() string { return "postgres" }

// Record implements domain.ActivitySink.
func (s *ActivityStore) Record(ctx context.Context, item domain.ActivityItem) error {
	return s.Append(ctx, item)
}

// Append inserts item. Re-delivery of an existing id is a no-op.
func (s *ActivityStore) Append(ctx context.Context, item domain.ActivityItem) error {
	const query = `
		INSERT INTO activity_log (id, title, detail, severity, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, item.ID, item.Title, item.Detail, string(item.Severity), item.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append activity %s: %w", item.ID, err)
	}
	return nil
}

// List returns mirrored items newest first with pagination and optional time
// filtering.
func (s *ActivityStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ActivityItem, error) {
	query, args := listQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity: %w", err)
	}
	return collectActivity(rows)
}

// ListBefore returns up to limit items that occurred before cutoff, oldest
// first.
func (s *ActivityStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActivityItem, error) {
	const query = `
		SELECT id, title, detail, severity, occurred_at
		FROM activity_log
		WHERE occurred_at < $1
		ORDER BY occurred_at ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return collectActivity(rows)
}

// Delete removes the items with the given ids and returns how many were
// deleted.
func (s *ActivityStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM activity_log WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d activity items: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// listQuery builds the filtered, paginated select for List.
func listQuery(opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, title, detail, severity, occurred_at FROM activity_log WHERE 1=1`)
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND occurred_at >= " + arg(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND occurred_at <= " + arg(*opts.Until))
	}
	b.WriteString(" ORDER BY occurred_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}

func collectActivity(rows pgx.Rows) ([]domain.ActivityItem, error) {
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ActivityItem, error) {
		var (
			item domain.ActivityItem
			sev  string
		)
		if err := row.Scan(&item.ID, &item.Title, &item.Detail, &sev, &item.Timestamp); err != nil {
			return item, err
		}
		item.Severity = domain.Severity(sev)
		item.Timestamp = item.Timestamp.UTC()
		return item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan activity: %w", err)
	}
	return items, nil
}

// Compile-time interface checks.
var (
	_ domain.ActivityStore = (*ActivityStore)(nil)
	_ domain.ActivitySink  = (*ActivityStore)(nil)
)

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// archiveBatch bounds how many items one archive file holds.
const archiveBatch = 1000

// ActivitySource is the slice of the activity store the archiver needs.
type ActivitySource interface {
	// ListBefore returns up to limit items that occurred before cutoff,
	// oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActivityItem, error)
	// Delete removes the items with the given ids.
	Delete(ctx context.Context, ids []string) (int64, error)
}

// ActivityArchiver moves mirrored activity older than the retention window
// from the database into JSONL files in object storage. A batch is deleted
// from the database only after its file has been uploaded.
type ActivityArchiver struct {
	writer    domain.BlobWriter
	source    ActivitySource
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewActivityArchiver creates an ActivityArchiver keeping retentionDays of
// activity in the database.
func NewActivityArchiver(writer domain.BlobWriter, source ActivitySource, retentionDays int, logger *slog.Logger) *ActivityArchiver {
	return &ActivityArchiver{
		writer:    writer,
		source:    source,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "activity_archiver")),
	}
}

// Archive uploads and then deletes every item older than the retention
// window, one batch per file. It returns the number of items archived.
func (a *ActivityArchiver) Archive(ctx context.Context) (int, error) {
	cutoff := a.now().UTC().Add(-a.retention)
	total := 0
	for part := 0; ; part++ {
		items, err := a.source.ListBefore(ctx, cutoff, archiveBatch)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive activity query: %w", err)
		}
		if len(items) == 0 {
			break
		}

		buf, err := marshalJSONL(items)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive activity marshal: %w", err)
		}
		path := archivePath(cutoff, part)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive activity upload: %w", err)
		}

		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		if _, err := a.source.Delete(ctx, ids); err != nil {
			return total, fmt.Errorf("s3blob: archive activity delete: %w", err)
		}
		total += len(items)
		if len(items) < archiveBatch {
			break
		}
	}

	if total > 0 {
		a.logger.InfoContext(ctx, "activity archived",
			slog.Int("count", total),
			slog.Time("cutoff", cutoff),
		)
	}
	return total, nil
}

// Run archives every interval until ctx is cancelled. Failed runs are logged
// and retried on the next tick.
func (a *ActivityArchiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Archive(ctx); err != nil {
				a.logger.ErrorContext(ctx, "activity archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the key for one archive file, partitioned by the
// cutoff date.
//
//	archive/activity/2026-01-15/20260115T030000Z-000.jsonl
func archivePath(cutoff time.Time, part int) string {
	return fmt.Sprintf("archive/activity/%s/%s-%03d.jsonl",
		cutoff.Format("2006-01-02"), cutoff.Format("20060102T150405Z"), part)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/shadow?sslmode=disable", DSN(ClientConfig{
		Host: "db", Database: "shadow", User: "u", Password: "p",
	}))
	assert.Equal(t, "postgres://u:p@db:6543/shadow?sslmode=require", DSN(ClientConfig{
		Host: "db", Port: 6543, Database: "shadow", User: "u", Password: "p", SSLMode: "require",
	}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	tests := []struct {
		name      string
		opts      domain.ListOpts
		wantTail  string
		wantCount int
	}{
		{"unfiltered", domain.ListOpts{}, "WHERE 1=1 ORDER BY occurred_at DESC, id DESC", 0},
		{"window", domain.ListOpts{Since: &since, Until: &until},
			"AND occurred_at >= $1 AND occurred_at <= $2 ORDER BY occurred_at DESC, id DESC", 2},
		{"paged", domain.ListOpts{Limit: 12, Offset: 24},
			"ORDER BY occurred_at DESC, id DESC LIMIT $1 OFFSET $2", 2},
		{"since and limit", domain.ListOpts{Since: &since, Limit: 5},
			"AND occurred_at >= $1 ORDER BY occurred_at DESC, id DESC LIMIT $2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery(tt.opts)
			assert.True(t, len(q) > len(tt.wantTail))
			assert.Contains(t, q, tt.wantTail)
			assert.Len(t, args, tt.wantCount)
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_activity_log.sql", names[0])

	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS activity_log")
}

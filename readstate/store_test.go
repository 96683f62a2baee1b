package readstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	read, err := store.IsRead(ctx, "a")
	require.NoError(t, err)
	assert.False(t, read)

	require.NoError(t, store.MarkRead(ctx, "a"))
	require.NoError(t, store.MarkRead(ctx, "a"))
	require.NoError(t, store.MarkRead(ctx, "c"))

	read, err = store.IsRead(ctx, "a")
	require.NoError(t, err)
	assert.True(t, read)

	set, err := store.ReadSet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, set)
}

func TestMemoryStoreTidy(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.MarkRead(ctx, "old"))
	now = base.Add(48 * time.Hour)
	require.NoError(t, store.MarkRead(ctx, "new"))

	removed, err := store.Tidy(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	set, err := store.ReadSet(ctx, []string{"old", "new"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"new": true}, set)
}

func TestQueries(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		build    func() (string, []interface{})
		contains []string
		args     []interface{}
	}{
		{
			name:     "mark read",
			build:    func() (string, []interface{}) { return markReadQuery("id-1", at) },
			contains: []string{"INSERT INTO read_articles", "(article_id, read_at)", "VALUES ($1, $2)", "ON CONFLICT (article_id) DO NOTHING"},
			args:     []interface{}{"id-1", at},
		},
		{
			name:     "is read",
			build:    func() (string, []interface{}) { return isReadQuery("id-1") },
			contains: []string{"SELECT 1 FROM read_articles", "WHERE article_id = $1", "LIMIT"},
		},
		{
			name:     "read set dedupes ids",
			build:    func() (string, []interface{}) { return readSetQuery([]string{"a", "b", "a"}) },
			contains: []string{"SELECT article_id FROM read_articles", "WHERE article_id IN ($1, $2)"},
			args:     []interface{}{"a", "b"},
		},
		{
			name:     "tidy",
			build:    func() (string, []interface{}) { return tidyQuery(at) },
			contains: []string{"DELETE FROM read_articles", "WHERE read_at < $1"},
			args:     []interface{}{at},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.build()
			for _, fragment := range tt.contains {
				assert.Contains(t, query, fragment)
			}
			if tt.args != nil {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestConnectionString(t *testing.T) {
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=newsdeck sslmode=disable",
		connectionString("localhost", 5432, "postgres", "secret", "newsdeck"),
	)
}

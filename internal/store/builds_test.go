package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LastBuild(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordBuild(ctx, &Build{
			ID:          uuid.NewString(),
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			Duration:    1500 * time.Millisecond,
			Posts:       10 + i,
			Pages:       15,
			Warnings:    i,
			Incremental: i > 0,
		}))
	}

	last, err := s.LastBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, last.Posts)
	assert.Equal(t, 2, last.Warnings)
	assert.True(t, last.Incremental)
	assert.Equal(t, 1500*time.Millisecond, last.Duration)
	assert.True(t, last.StartedAt.Equal(base.Add(2*time.Minute)))

	recent, err := s.RecentBuilds(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 12, recent[0].Posts)
	assert.Equal(t, 11, recent[1].Posts)
}

func TestRecentBuilds_DefaultLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, s.RecordBuild(ctx, &Build{
			ID:        fmt.Sprintf("build-%02d", i),
			StartedAt: time.Date(2026, 8, 25, 10, i, 0, 0, time.UTC),
			Duration:  time.Second,
		}))
	}

	recent, err := s.RecentBuilds(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 10)
}

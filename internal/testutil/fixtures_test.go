package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
)

func TestNewItem_Options(t *testing.T) {
	it := NewItem("f1", "woody", 4,
		WithUsage(collection.UsageDaily),
		WithSeasons("winter", "fall"),
		WithOccasions("evening"),
		WithBrand("Maison"),
		WithPrice(210),
		WithEmbedding(1, 0, 0),
		AddedAgo(48*time.Hour),
		LastUsedAgo(time.Hour),
	)
	assert.Equal(t, "f1", it.FragranceID)
	assert.Equal(t, collection.UsageDaily, it.UsageFrequency)
	assert.Equal(t, []string{"winter", "fall"}, it.Seasons)
	assert.Equal(t, []string{"evening"}, it.Occasions)
	assert.Equal(t, "Maison", it.Brand())
	assert.Equal(t, 210.0, it.Fragrance.Price)
	assert.True(t, it.Fragrance.HasEmbedding())
	assert.Equal(t, Now.Add(-48*time.Hour), it.CreatedAt)
	require.NotNil(t, it.LastUsedAt)
	assert.Equal(t, Now.Add(-time.Hour), *it.LastUsedAt)
}

func TestStaticRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStaticRepository().Set("alice", NewItem("f1", "citrus", 5))

	items, err := repo.GetUserCollection(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = repo.GetUserCollection(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, items)

	boom := errors.New("boom")
	repo.FailWith(boom)
	_, err = repo.GetUserCollection(ctx, "alice")
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 2, repo.Reads("alice"))
	assert.Equal(t, 1, repo.Reads("bob"))
}

func TestFixedClock(t *testing.T) {
	assert.Equal(t, Now, FixedClock{T: Now}.Now())
}

package snapshotstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunamarcelino/velobid/go/internal/models"
)

func TestMemoryLoadBeforeSave(t *testing.T) {
	_, err := NewMemory().LoadView(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaveReplacesView(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := models.Categorize([]models.AuctionRecord{{AuctionID: 1, EndTime: now}}, 1, now)
	second := models.Categorize([]models.AuctionRecord{{AuctionID: 2, EndTime: now}, {AuctionID: 3, EndTime: now, Ended: true}}, 2, now)
	require.NoError(t, m.SaveView(ctx, first))
	require.NoError(t, m.SaveView(ctx, second))

	got, err := m.LoadView(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Generation)
	require.Len(t, got.All, 2)
	assert.Len(t, got.Active, 1)
	assert.Len(t, got.Past, 1)

	got.All[0].Name = "mutated"
	again, _ := m.LoadView(ctx)
	assert.Empty(t, again.All[0].Name)
}

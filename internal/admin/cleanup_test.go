package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/logging"
)

func seed(t *testing.T, mem *docstore.MemoryStore, ns docstore.Namespace, ids ...int) {
	t.Helper()
	store, err := mem.Acquire(context.Background())
	require.NoError(t, err)
	defer store.Close()
	for _, id := range ids {
		require.NoError(t, store.UpsertByQuery(context.Background(), ns, docstore.Query{"id": id}, docstore.Document{}))
	}
}

func newCleaner(mem *docstore.MemoryStore) *Cleaner {
	return NewCleaner(mem, logging.Discard())
}

func TestCleaner_Cleanup(t *testing.T) {
	mem := docstore.NewMemoryStore()
	seed(t, mem, docstore.Staging("team"), 1, 2)
	seed(t, mem, docstore.Staging("venue"), 1)
	seed(t, mem, docstore.Production("team"), 1)

	result, err := newCleaner(mem).Cleanup(context.Background(), CleanupRequest{
		Tier:        docstore.TierStaging,
		Collections: []string{"team", "venue", "game"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"team": 2, "venue": 1, "game": 0}, result.Deleted)
	assert.EqualValues(t, 3, result.Total())
	assert.Zero(t, mem.Count(docstore.Staging("team")))
	assert.Equal(t, 1, mem.Count(docstore.Production("team")), "other tiers are untouched")
	assert.Zero(t, mem.OpenHandles())
}

func TestCleaner_ProductionNeedsConfirmation(t *testing.T) {
	mem := docstore.NewMemoryStore()
	seed(t, mem, docstore.Production("team"), 1)
	cleaner := newCleaner(mem)
	req := CleanupRequest{Tier: docstore.TierProduction, Collections: []string{"team"}}

	_, err := cleaner.Cleanup(context.Background(), req)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 1, mem.Count(docstore.Production("team")))

	req.Confirm = true
	result, err := cleaner.Cleanup(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Deleted["team"])
	assert.Zero(t, mem.Count(docstore.Production("team")))
}

func TestCleaner_NoCollections(t *testing.T) {
	_, err := newCleaner(docstore.NewMemoryStore()).Cleanup(context.Background(), CleanupRequest{Tier: docstore.TierExtraction})
	assert.Error(t, err)
}

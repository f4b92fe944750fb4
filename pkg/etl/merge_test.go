package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/logging"
)

func TestMerge(t *testing.T) {
	ctx := context.Background()
	prod := docstore.Production("team")
	key := docstore.Query{"year": 2024, "team_id": 1}

	t.Run("inserts when absent then leaves it alone", func(t *testing.T) {
		mem := docstore.NewMemoryStore()
		store := acquire(t, mem)

		result, err := Merge(ctx, store, prod, docstore.Document{"school": "Ohio State"}, key, false)
		require.NoError(t, err)
		assert.Equal(t, MergeInserted, result)

		result, err = Merge(ctx, store, prod, docstore.Document{"school": "Changed"}, key, false)
		require.NoError(t, err)
		assert.Equal(t, MergeUnchanged, result)

		doc, _, err := store.FindOne(ctx, prod, key)
		require.NoError(t, err)
		assert.Equal(t, "Ohio State", doc["school"])
		assert.Equal(t, 1, mem.Count(prod))
	})

	t.Run("replaces every match", func(t *testing.T) {
		mem := docstore.NewMemoryStore()
		store := acquire(t, mem)
		require.NoError(t, store.UpsertByQuery(ctx, prod, docstore.Query{"year": 2024, "team_id": 1, "dup": 1}, docstore.Document{"school": "Old"}))
		require.NoError(t, store.UpsertByQuery(ctx, prod, docstore.Query{"year": 2024, "team_id": 1, "dup": 2}, docstore.Document{"school": "Older"}))

		result, err := Merge(ctx, store, prod, docstore.Document{"school": "New"}, key, true)
		require.NoError(t, err)
		assert.Equal(t, MergeReplaced, result)

		docs, err := store.Find(ctx, prod, key)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "New", docs[0]["school"])
	})

	t.Run("is idempotent with replace", func(t *testing.T) {
		mem := docstore.NewMemoryStore()
		store := acquire(t, mem)
		for i := 0; i < 3; i++ {
			_, err := Merge(ctx, store, prod, docstore.Document{"school": "Ohio State"}, key, true)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, mem.Count(prod))
	})

	t.Run("store fault", func(t *testing.T) {
		provider := &faultProvider{mem: docstore.NewMemoryStore(), failWrites: map[docstore.Namespace]bool{prod: true}}
		store := acquire(t, provider)

		_, err := Merge(ctx, store, prod, docstore.Document{"school": "Ohio State"}, key, false)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestLoadNamespace(t *testing.T) {
	ctx := context.Background()
	staging := docstore.Staging("venue")
	prod := docstore.Production("venue")

	provider := &faultProvider{mem: docstore.NewMemoryStore()}
	store := acquire(t, provider)
	require.NoError(t, store.UpsertByQuery(ctx, staging, docstore.Query{"venue_id": 1}, docstore.Document{"name": "Ohio Stadium"}))
	require.NoError(t, store.UpsertByQuery(ctx, staging, docstore.Query{"venue_id": 2}, docstore.Document{"name": "Michigan Stadium"}))
	require.NoError(t, store.UpsertByQuery(ctx, staging, docstore.Query{"name": "No Id"}, docstore.Document{}))
	require.NoError(t, store.UpsertByQuery(ctx, prod, docstore.Query{"venue_id": 2}, docstore.Document{"name": "The Big House"}))

	report := LoadNamespace(ctx, store, logging.Discard(), staging, prod, FieldKey("venue_id"), false)

	assert.Equal(t, LoadReport{Inserted: 1, Unchanged: 1, Failed: 1}, report)
	assert.Equal(t, 2, provider.mem.Count(prod))

	report = LoadNamespace(ctx, store, logging.Discard(), staging, prod, FieldKey("venue_id"), true)
	assert.Equal(t, LoadReport{Replaced: 2, Failed: 1}, report)

	doc, _, err := store.FindOne(ctx, prod, docstore.Query{"venue_id": 2})
	require.NoError(t, err)
	assert.Equal(t, "Michigan Stadium", doc["name"])
}

func TestLoadNamespace_ContinuesPastFaults(t *testing.T) {
	ctx := context.Background()
	staging := docstore.Staging("venue")
	prod := docstore.Production("venue")
	provider := &faultProvider{mem: docstore.NewMemoryStore(), failWrites: map[docstore.Namespace]bool{prod: true}}
	store := acquire(t, provider)
	require.NoError(t, store.UpsertByQuery(ctx, staging, docstore.Query{"venue_id": 1}, docstore.Document{}))
	require.NoError(t, store.UpsertByQuery(ctx, staging, docstore.Query{"venue_id": 2}, docstore.Document{}))

	report := LoadNamespace(ctx, store, logging.Discard(), staging, prod, FieldKey("venue_id"), false)

	assert.Equal(t, LoadReport{Failed: 2}, report)
}

func TestLoadReport_Add(t *testing.T) {
	r := LoadReport{Inserted: 1}
	r.Add(LoadReport{Inserted: 2, Replaced: 1, Failed: 1})
	assert.Equal(t, LoadReport{Inserted: 3, Replaced: 1, Failed: 1}, r)
	assert.Equal(t, 5, r.Total())
}

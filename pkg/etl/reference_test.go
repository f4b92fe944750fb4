package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/docstore"
)

func conferenceRef(name string) Reference {
	return Reference{
		Entity:          "conference",
		Staging:         docstore.Staging("conference"),
		StagingQuery:    docstore.Query{"name": name},
		Extraction:      docstore.Extraction("conference"),
		ExtractionQuery: docstore.Query{"name": name, "classification": "fbs"},
		Required:        []string{"id", "name", "classification"},
		Build: func(raw docstore.Document) (docstore.Document, docstore.Query, error) {
			entity := docstore.Document{"conference_id": raw["id"], "name": raw["name"]}
			return entity, docstore.Query{"conference_id": raw["id"]}, nil
		},
	}
}

func seedConference(t *testing.T, store docstore.Store, doc docstore.Document) {
	t.Helper()
	require.NoError(t, store.UpsertByQuery(context.Background(), docstore.Extraction("conference"), docstore.Query{"id": doc["id"]}, doc))
}

func TestGetOrCreate_CreatesFromExtraction(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemoryStore()
	store := acquire(t, mem)
	seedConference(t, store, docstore.Document{"id": 5, "name": "Big Ten", "classification": "fbs"})

	doc, outcome := GetOrCreate(ctx, store, conferenceRef("Big Ten"))

	require.True(t, outcome.IsSuccess(), outcome.String())
	assert.Equal(t, float64(5), doc["conference_id"])
	assert.Equal(t, 1, mem.Count(docstore.Staging("conference")))
}

func TestGetOrCreate_PrefersStaging(t *testing.T) {
	ctx := context.Background()
	store := acquire(t, docstore.NewMemoryStore())
	require.NoError(t, store.UpsertByQuery(ctx, docstore.Staging("conference"), docstore.Query{"conference_id": 9}, docstore.Document{"name": "Big Ten"}))

	ref := conferenceRef("Big Ten")
	ref.Build = func(docstore.Document) (docstore.Document, docstore.Query, error) {
		return nil, nil, errors.New("build should not run")
	}
	doc, outcome := GetOrCreate(ctx, store, ref)

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, float64(9), doc["conference_id"])
}

func TestGetOrCreate_Skips(t *testing.T) {
	tests := []struct {
		name string
		seed docstore.Document
		ref  func(Reference) Reference
	}{
		{
			name: "not found anywhere",
			ref:  func(r Reference) Reference { return r },
		},
		{
			name: "missing required field",
			seed: docstore.Document{"id": 5, "name": "Big Ten", "classification": "fbs", "abbreviation": ""},
			ref: func(r Reference) Reference {
				r.Required = append(r.Required, "abbreviation")
				return r
			},
		},
		{
			name: "build reports a validation miss",
			seed: docstore.Document{"id": 5, "name": "Big Ten", "classification": "fbs"},
			ref: func(r Reference) Reference {
				r.Build = func(docstore.Document) (docstore.Document, docstore.Query, error) {
					return nil, nil, fmt.Errorf("%w: bad name", ErrValidationMiss)
				}
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := docstore.NewMemoryStore()
			store := acquire(t, mem)
			if tt.seed != nil {
				seedConference(t, store, tt.seed)
			}

			doc, outcome := GetOrCreate(context.Background(), store, tt.ref(conferenceRef("Big Ten")))

			assert.Nil(t, doc)
			assert.True(t, outcome.IsSkipped(), outcome.String())
			assert.Zero(t, mem.Count(docstore.Staging("conference")))
		})
	}
}

func TestGetOrCreate_StoreFaultIsFatal(t *testing.T) {
	provider := &faultProvider{
		mem:        docstore.NewMemoryStore(),
		failWrites: map[docstore.Namespace]bool{docstore.Staging("conference"): true},
	}
	store := acquire(t, provider)
	seedConference(t, store, docstore.Document{"id": 5, "name": "Big Ten", "classification": "fbs"})

	_, outcome := GetOrCreate(context.Background(), store, conferenceRef("Big Ten"))

	assert.True(t, outcome.IsFatal())
	assert.ErrorIs(t, outcome.Err, errStoreDown)
}

func TestGetOrCreate_ConcurrentCallersShareOneEntity(t *testing.T) {
	mem := docstore.NewMemoryStore()
	seedConference(t, acquire(t, mem), docstore.Document{"id": 5, "name": "Big Ten", "classification": "fbs"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := mem.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer store.Close()
			_, outcome := GetOrCreate(context.Background(), store, conferenceRef("Big Ten"))
			assert.True(t, outcome.IsSuccess())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mem.Count(docstore.Staging("conference")))
}

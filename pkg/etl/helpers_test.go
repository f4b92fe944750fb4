package etl

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/retry"
	"github.com/Ramsey-B/clover/pkg/source"
)

func testCaller(attempts int) *retry.Caller {
	return retry.NewCaller(retry.Config{MaxAttempts: attempts, Delay: 0}, logging.Discard())
}

func acquire(t *testing.T, p docstore.Provider) docstore.Store {
	t.Helper()
	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var errStoreDown = httperror.NewHTTPErrorf(http.StatusInternalServerError, "store is down")

// faultStore fails writes to the namespaces in failWrites.
type faultStore struct {
	docstore.Store
	failWrites map[docstore.Namespace]bool
}

func (f *faultStore) UpsertByQuery(ctx context.Context, ns docstore.Namespace, q docstore.Query, doc docstore.Document) error {
	if f.failWrites[ns] {
		return errStoreDown
	}
	return f.Store.UpsertByQuery(ctx, ns, q, doc)
}

func (f *faultStore) InsertIfAbsent(ctx context.Context, ns docstore.Namespace, q docstore.Query, doc docstore.Document) (docstore.Document, bool, error) {
	if f.failWrites[ns] {
		return nil, false, errStoreDown
	}
	return f.Store.InsertIfAbsent(ctx, ns, q, doc)
}

func (f *faultStore) Replace(ctx context.Context, ns docstore.Namespace, q docstore.Query, doc docstore.Document) error {
	if f.failWrites[ns] {
		return errStoreDown
	}
	return f.Store.Replace(ctx, ns, q, doc)
}

type faultProvider struct {
	mem        *docstore.MemoryStore
	failWrites map[docstore.Namespace]bool
	acquireErr error
}

func (p *faultProvider) Acquire(ctx context.Context) (docstore.Store, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	s, err := p.mem.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &faultStore{Store: s, failWrites: p.failWrites}, nil
}

// fakeExtraction writes its records into its own namespace.
type fakeExtraction struct {
	name     string
	records  []docstore.Document
	err      error
	extracts atomic.Int32
	cleanups atomic.Int32
}

func (f *fakeExtraction) Name() string { return f.name }

func (f *fakeExtraction) Namespace() docstore.Namespace { return docstore.Extraction(f.name) }

func (f *fakeExtraction) Extract(ctx context.Context, _ source.Client, store docstore.Store) error {
	f.extracts.Add(1)
	if f.err != nil {
		return f.err
	}
	for _, rec := range f.records {
		if err := store.UpsertByQuery(ctx, f.Namespace(), docstore.Query{"id": rec["id"]}, rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeExtraction) Cleanup(ctx context.Context, store docstore.Store) error {
	f.cleanups.Add(1)
	_, err := store.DeleteAll(ctx, f.Namespace())
	return err
}

// fakeUnit copies its dependencies' records into staging and loads them by id.
type fakeUnit struct {
	name         string
	deps         []ExtractionUnit
	transformErr error
	panicOn      string
	transforms   int
	staged       int
	loads        int
	cleanups     int
}

func (f *fakeUnit) Name() string                   { return f.name }
func (f *fakeUnit) Dependencies() []ExtractionUnit { return f.deps }

func (f *fakeUnit) staging() docstore.Namespace    { return docstore.Staging(f.name) }
func (f *fakeUnit) production() docstore.Namespace { return docstore.Production(f.name) }

func (f *fakeUnit) Transform(ctx context.Context, store docstore.Store) error {
	f.transforms++
	if f.panicOn == "transform" {
		panic("boom")
	}
	if f.transformErr != nil {
		return f.transformErr
	}
	for _, dep := range f.deps {
		docs, err := store.Find(ctx, docstore.Extraction(dep.Name()), docstore.Query{})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := store.UpsertByQuery(ctx, f.staging(), docstore.Query{"id": doc["id"]}, doc); err != nil {
				return err
			}
			f.staged++
		}
	}
	return nil
}

func (f *fakeUnit) Load(ctx context.Context, store docstore.Store) LoadReport {
	f.loads++
	if f.panicOn == "load" {
		panic("boom")
	}
	return LoadNamespace(ctx, store, logging.Discard(), f.staging(), f.production(), FieldKey("id"), false)
}

func (f *fakeUnit) Cleanup(ctx context.Context, store docstore.Store) error {
	f.cleanups++
	return CleanupNamespaces(ctx, store, logging.Discard(), f.staging())
}

type fakeHooks struct {
	postTransformErr error
	validateErr      error
	postTransforms   int
	validates        int
}

func (h *fakeHooks) PostTransform(context.Context, docstore.Store) error {
	h.postTransforms++
	return h.postTransformErr
}

func (h *fakeHooks) Validate(context.Context, docstore.Store) error {
	h.validates++
	return h.validateErr
}

type recordingObserver struct {
	mu      sync.Mutex
	reports []RunReport
	err     error
}

func (o *recordingObserver) RunFinished(_ context.Context, report RunReport) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, report)
	return o.err
}

var errBoom = errors.New("boom")

package etl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/retry"
	"github.com/Ramsey-B/clover/pkg/source"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Scope is one partition of a remote fetch, e.g. a single year.
type Scope struct {
	// Params are sent to the source as query parameters.
	Params map[string]string
	// Stamp fields are written onto every record fetched for this scope.
	Stamp map[string]any
}

// String renders the scope params as sorted k=v pairs
func (s Scope) String() string {
	if len(s.Params) == 0 {
		return "all"
	}
	parts := make([]string, 0, len(s.Params))
	for _, k := range slices.Sorted(maps.Keys(s.Params)) {
		parts = append(parts, k+"="+s.Params[k])
	}
	return strings.Join(parts, ",")
}

// KeyFunc derives the natural-key query a record is stored under.
type KeyFunc func(rec map[string]any) (docstore.Query, error)

// ExtractionConfig describes one extraction: where to fetch, what to keep and how to key it
type ExtractionConfig struct {
	Name       string
	Collection string
	Endpoint   string
	// Scopes lists each partition to fetch. A nil slice fetches once with no
	// params; an empty non-nil slice means the unit has nothing to do.
	Scopes []Scope
	// Filter drops records before they are stored. Nil keeps everything.
	Filter func(rec source.Record) bool
	Key    KeyFunc
}

// Extraction is an ExtractionUnit driven by configuration.
type Extraction struct {
	cfg    ExtractionConfig
	caller *retry.Caller
	logger ectologger.Logger
}

// NewExtraction creates an extraction unit from cfg
func NewExtraction(cfg ExtractionConfig, caller *retry.Caller, logger ectologger.Logger) *Extraction {
	return &Extraction{
		cfg:    cfg,
		caller: caller,
		logger: logger,
	}
}

// Name returns the unit name
func (e *Extraction) Name() string {
	return e.cfg.Name
}

// Namespace returns the extraction namespace the unit writes
func (e *Extraction) Namespace() docstore.Namespace {
	return docstore.Extraction(e.cfg.Collection)
}

// Extract fetches every scope and upserts the kept records
func (e *Extraction) Extract(ctx context.Context, src source.Client, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "etl.Extraction.Extract")
	defer span.End()

	logger := e.logger.WithContext(ctx).WithFields(map[string]any{
		"unit":      e.cfg.Name,
		"namespace": e.Namespace().String(),
	})

	scopes := e.cfg.Scopes
	if scopes == nil {
		scopes = []Scope{{}}
	}
	if len(scopes) == 0 {
		logger.Warn("No scopes configured; nothing to extract")
		return nil
	}

	total := 0
	for _, scope := range scopes {
		records, ok := retry.Do(ctx, e.caller, e.cfg.Name+" "+scope.String(), func() ([]source.Record, error) {
			return src.Fetch(ctx, e.cfg.Endpoint, scope.Params)
		})
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.WithError(ErrSourceUnavailable).WithField("scope", scope.String()).Warn("No result from source for scope; continuing with the next one")
			continue
		}

		stored, err := e.store(ctx, store, scope, records)
		total += stored
		if err != nil {
			logger.WithError(err).WithField("scope", scope.String()).Error("Failed to store extracted records")
			return fmt.Errorf("%s: %w", e.cfg.Name, err)
		}
	}

	metrics.RecordExtracted(e.cfg.Name, total)
	logger.WithField("records", total).Infof("Extracted %d records", total)
	return nil
}

func (e *Extraction) store(ctx context.Context, store docstore.Store, scope Scope, records []source.Record) (int, error) {
	stored := 0
	for _, rec := range records {
		if e.cfg.Filter != nil && !e.cfg.Filter(rec) {
			continue
		}
		doc := make(docstore.Document, len(rec)+len(scope.Stamp))
		maps.Copy(doc, rec)
		maps.Copy(doc, scope.Stamp)

		q, err := e.cfg.Key(doc)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithField("unit", e.cfg.Name).Warn("Skipping record without a natural key")
			continue
		}
		if err := store.UpsertByQuery(ctx, e.Namespace(), q, doc); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// Cleanup empties the unit's extraction namespace
func (e *Extraction) Cleanup(ctx context.Context, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "etl.Extraction.Cleanup")
	defer span.End()

	return CleanupNamespaces(ctx, store, e.logger, e.Namespace())
}

// FieldKey builds a KeyFunc from record fields. A record missing any of them
// is a validation miss.
func FieldKey(fields ...string) KeyFunc {
	return func(rec map[string]any) (docstore.Query, error) {
		q := make(docstore.Query, len(fields))
		for _, f := range fields {
			v, ok := rec[f]
			if !ok || v == nil {
				return nil, fmt.Errorf("%w: missing key field %q", ErrValidationMiss, f)
			}
			q[f] = v
		}
		return q, nil
	}
}

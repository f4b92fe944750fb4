package etl

import (
	"context"
	"errors"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/validation"
)

// Reference describes how to resolve one entity another entity points at.
// Staging is consulted first; on a miss the raw record is read from extraction,
// validated, built and inserted into staging.
type Reference struct {
	Entity          string
	Staging         docstore.Namespace
	StagingQuery    docstore.Query
	Extraction      docstore.Namespace
	ExtractionQuery docstore.Query
	// Required fields the raw record must carry before Build is called.
	Required []string
	// Build turns the raw record into the staging entity and the query it is
	// keyed under. Errors wrapping ErrValidationMiss skip the reference.
	Build func(raw docstore.Document) (docstore.Document, docstore.Query, error)
}

// GetOrCreate resolves ref. Two callers racing on the same entity both get
// the single stored copy.
func GetOrCreate(ctx context.Context, store docstore.Store, ref Reference) (docstore.Document, Outcome) {
	ctx, span := tracing.StartSpan(ctx, "etl.GetOrCreate")
	defer span.End()

	doc, found, err := store.FindOne(ctx, ref.Staging, ref.StagingQuery)
	if err != nil {
		return nil, Fail(err)
	}
	if found {
		return doc, Success()
	}

	raw, found, err := store.FindOne(ctx, ref.Extraction, ref.ExtractionQuery)
	if err != nil {
		return nil, Fail(err)
	}
	if !found {
		return nil, Skip("%s %v not found in staging or extraction", ref.Entity, map[string]any(ref.ExtractionQuery))
	}
	if missing := validation.MissingFields(raw, ref.Required...); len(missing) > 0 {
		return nil, Skip("%s %v is missing %v", ref.Entity, map[string]any(ref.ExtractionQuery), missing)
	}

	entity, key, err := ref.Build(raw)
	if err != nil {
		if errors.Is(err, ErrValidationMiss) {
			return nil, Skip("%s: %v", ref.Entity, err)
		}
		return nil, Fail(err)
	}

	stored, _, err := store.InsertIfAbsent(ctx, ref.Staging, key, entity)
	if err != nil {
		return nil, Fail(err)
	}
	return stored, Success()
}

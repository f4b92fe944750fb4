package etl

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/source"
)

// ExtractionUnit pulls one kind of record from the remote source into its own
// extraction namespace. Units never depend on each other.
type ExtractionUnit interface {
	Name() string
	// Extract returns nil when every scope either succeeded or degraded to "no
	// result". Only store faults are returned.
	Extract(ctx context.Context, src source.Client, store docstore.Store) error
	// Cleanup deletes everything in the unit's extraction namespace.
	Cleanup(ctx context.Context, store docstore.Store) error
}

// TransformLoadUnit builds staging entities from extraction records and merges
// them into production.
type TransformLoadUnit interface {
	Name() string
	Dependencies() []ExtractionUnit
	// Transform skips records that fail validation. A returned error fails the stage.
	Transform(ctx context.Context, store docstore.Store) error
	// Load is best-effort; per-entity failures are counted in the report.
	Load(ctx context.Context, store docstore.Store) LoadReport
	// Cleanup deletes everything in the unit's staging namespaces.
	Cleanup(ctx context.Context, store docstore.Store) error
}

// Hooks are pipeline-level checks run between Transform and Load.
type Hooks interface {
	PostTransform(ctx context.Context, store docstore.Store) error
	Validate(ctx context.Context, store docstore.Store) error
}

// NoopHooks is Hooks that always succeed
type NoopHooks struct{}

func (NoopHooks) PostTransform(context.Context, docstore.Store) error { return nil }
func (NoopHooks) Validate(context.Context, docstore.Store) error      { return nil }

// CleanupNamespaces deletes every document in each namespace. A failing
// namespace does not stop the others; all failures are returned joined.
func CleanupNamespaces(ctx context.Context, store docstore.Store, logger ectologger.Logger, namespaces ...docstore.Namespace) error {
	var errs []error
	for _, ns := range namespaces {
		deleted, err := store.DeleteAll(ctx, ns)
		if err != nil {
			metrics.RecordCleanup(string(ns.Tier), "failed")
			logger.WithContext(ctx).WithError(err).WithField("namespace", ns.String()).Error("Failed to clean up namespace")
			errs = append(errs, err)
			continue
		}
		metrics.RecordCleanup(string(ns.Tier), "succeeded")
		logger.WithContext(ctx).WithFields(map[string]any{
			"namespace": ns.String(),
			"deleted":   deleted,
		}).Debug("Cleaned up namespace")
	}
	return errors.Join(errs...)
}

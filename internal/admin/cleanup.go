// Package admin holds operator actions that run outside a pipeline.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrConfirmationRequired guards production, which pipelines never delete from.
var ErrConfirmationRequired = errors.New("production cleanup requires confirmation")

// CleanupRequest names the tier and collections to empty
type CleanupRequest struct {
	Tier        docstore.Tier
	Collections []string
	Confirm     bool
}

// CleanupResult reports how many documents were deleted per collection
type CleanupResult struct {
	Tier    docstore.Tier
	Deleted map[string]int64
}

// Total returns the number of documents deleted across all collections
func (r CleanupResult) Total() int64 {
	var total int64
	for _, n := range r.Deleted {
		total += n
	}
	return total
}

// Cleaner empties collections of a single tier
type Cleaner struct {
	stores docstore.Provider
	logger ectologger.Logger
}

// NewCleaner creates a new tier cleaner
func NewCleaner(stores docstore.Provider, logger ectologger.Logger) *Cleaner {
	return &Cleaner{
		stores: stores,
		logger: logger,
	}
}

// Cleanup deletes every document in the requested collections of one tier.
// It keeps going past a failing collection and returns every failure joined.
func (c *Cleaner) Cleanup(ctx context.Context, req CleanupRequest) (CleanupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "admin.Cleaner.Cleanup")
	defer span.End()

	result := CleanupResult{Tier: req.Tier, Deleted: map[string]int64{}}
	if req.Tier == docstore.TierProduction && !req.Confirm {
		return result, ErrConfirmationRequired
	}
	if len(req.Collections) == 0 {
		return result, fmt.Errorf("no collections to clean in tier %s", req.Tier)
	}

	store, err := c.stores.Acquire(ctx)
	if err != nil {
		return result, err
	}
	defer store.Close()

	log := c.logger.WithContext(ctx).WithField("tier", string(req.Tier))
	var errs []error
	for _, collection := range req.Collections {
		ns := docstore.Namespace{Tier: req.Tier, Collection: collection}
		deleted, err := store.DeleteAll(ctx, ns)
		if err != nil {
			metrics.RecordCleanup(string(req.Tier), "failed")
			log.WithError(err).WithField("namespace", ns.String()).Error("Failed to clean up collection")
			errs = append(errs, fmt.Errorf("%s: %w", ns, err))
			continue
		}
		metrics.RecordCleanup(string(req.Tier), "succeeded")
		result.Deleted[collection] = deleted
	}

	log.WithField("deleted", result.Total()).Infof("Cleaned up %d collections", len(result.Deleted))
	return result, errors.Join(errs...)
}

package etl

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MergeResult is what Merge did to production
type MergeResult int

const (
	MergeUnchanged MergeResult = iota
	MergeInserted
	MergeReplaced
)

func (r MergeResult) String() string {
	switch r {
	case MergeInserted:
		return "inserted"
	case MergeReplaced:
		return "replaced"
	default:
		return "unchanged"
	}
}

// Merge writes entity into ns under q. An existing match is left alone
// unless replace is set, in which case it is swapped out atomically.
func Merge(ctx context.Context, store docstore.Store, ns docstore.Namespace, entity docstore.Document, q docstore.Query, replace bool) (MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "etl.Merge")
	defer span.End()

	_, found, err := store.FindOne(ctx, ns, q)
	if err != nil {
		return MergeUnchanged, err
	}
	if !found {
		_, created, err := store.InsertIfAbsent(ctx, ns, q, entity)
		if err != nil {
			return MergeUnchanged, err
		}
		if created {
			return MergeInserted, nil
		}
	}
	if !replace {
		return MergeUnchanged, nil
	}
	if err := store.Replace(ctx, ns, q, entity); err != nil {
		return MergeUnchanged, err
	}
	return MergeReplaced, nil
}

// LoadReport counts merge results for one unit
type LoadReport struct {
	Inserted  int
	Replaced  int
	Unchanged int
	Failed    int
}

// Add accumulates other into r
func (r *LoadReport) Add(other LoadReport) {
	r.Inserted += other.Inserted
	r.Replaced += other.Replaced
	r.Unchanged += other.Unchanged
	r.Failed += other.Failed
}

// Total returns the number of entities attempted
func (r LoadReport) Total() int {
	return r.Inserted + r.Replaced + r.Unchanged + r.Failed
}

func (r LoadReport) String() string {
	return fmt.Sprintf("inserted=%d replaced=%d unchanged=%d failed=%d", r.Inserted, r.Replaced, r.Unchanged, r.Failed)
}

// LoadNamespace merges every staging document into production. It never
// stops early; failures are logged and counted.
func LoadNamespace(ctx context.Context, store docstore.Store, logger ectologger.Logger, staging, production docstore.Namespace, key KeyFunc, replace bool) LoadReport {
	ctx, span := tracing.StartSpan(ctx, "etl.LoadNamespace")
	defer span.End()

	var report LoadReport
	log := logger.WithContext(ctx).WithFields(map[string]any{
		"staging":    staging.String(),
		"production": production.String(),
	})

	docs, err := store.Find(ctx, staging, docstore.Query{})
	if err != nil {
		log.WithError(err).Error("Failed to read staging namespace")
		report.Failed++
		return report
	}

	for _, doc := range docs {
		q, err := key(doc)
		if err != nil {
			log.WithError(err).Warn("Skipping staged entity without a natural key")
			report.Failed++
			continue
		}
		result, err := Merge(ctx, store, production, doc, q, replace)
		if err != nil {
			metrics.RecordMerge(production.String(), "failed")
			log.WithError(err).WithField("key", map[string]any(q)).Error("Failed to merge entity into production")
			report.Failed++
			continue
		}
		metrics.RecordMerge(production.String(), result.String())
		switch result {
		case MergeInserted:
			report.Inserted++
		case MergeReplaced:
			report.Replaced++
		default:
			report.Unchanged++
		}
	}

	log.WithField("report", report.String()).Infof("Loaded %d entities", report.Total()-report.Failed)
	return report
}

// Package docstore addresses schemaless documents by tier and collection.
//
// Every write is keyed by a query whose canonical JSON form is the document's
// natural key within its namespace. Reads match by containment: a document
// matches a query when every query field is present with an equal value.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Tier is one of the three storage tiers
type Tier string

const (
	TierExtraction Tier = "extraction"
	TierStaging    Tier = "staging"
	TierProduction Tier = "production"
)

// Tiers lists every tier in pipeline order.
var Tiers = []Tier{TierExtraction, TierStaging, TierProduction}

// ParseTier parses a tier name
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Namespace is one collection within one tier.
type Namespace struct {
	Tier       Tier
	Collection string
}

func (n Namespace) String() string {
	return string(n.Tier) + "." + n.Collection
}

// Extraction returns the extraction-tier namespace for collection
func Extraction(collection string) Namespace {
	return Namespace{Tier: TierExtraction, Collection: collection}
}

// Staging returns the staging-tier namespace for collection
func Staging(collection string) Namespace {
	return Namespace{Tier: TierStaging, Collection: collection}
}

// Production returns the production-tier namespace for collection
func Production(collection string) Namespace {
	return Namespace{Tier: TierProduction, Collection: collection}
}

// Document is a JSON object stored in a namespace
type Document map[string]any

// Query matches documents containing every key with an equal value
type Query map[string]any

var (
	// ErrClosed is returned by a handle used after Close.
	ErrClosed = errors.New("docstore: handle is closed")
	// ErrInvalidDocument is returned when a document or query cannot be encoded as JSON.
	ErrInvalidDocument = errors.New("docstore: invalid document")
)

// Store is a connection-scoped handle onto every tier.
type Store interface {
	// UpsertByQuery writes doc under the natural key of q, overwriting any previous version.
	UpsertByQuery(ctx context.Context, ns Namespace, q Query, doc Document) error
	Find(ctx context.Context, ns Namespace, q Query) ([]Document, error)
	// FindOne returns the first match; found is false when nothing matches.
	FindOne(ctx context.Context, ns Namespace, q Query) (doc Document, found bool, err error)
	// InsertIfAbsent stores doc under the natural key of q unless that key already
	// exists. It returns the stored document and whether this call created it.
	InsertIfAbsent(ctx context.Context, ns Namespace, q Query, doc Document) (stored Document, created bool, err error)
	// Replace atomically deletes every document matching q and stores doc under q's natural key.
	Replace(ctx context.Context, ns Namespace, q Query, doc Document) error
	DeleteByQuery(ctx context.Context, ns Namespace, q Query) (int64, error)
	DeleteAll(ctx context.Context, ns Namespace) (int64, error)
	Close() error
}

// Provider hands out store handles. Callers acquire one per stage and close it on exit.
type Provider interface {
	Acquire(ctx context.Context) (Store, error)
}

// NaturalKey is the canonical JSON encoding of q. encoding/json sorts map keys.
func NaturalKey(q Query) (string, error) {
	normalized, err := normalize(map[string]any(q))
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return string(b), nil
}

// normalize round-trips v through JSON so that numbers, nested structs and
// slices compare the same way regardless of which backend produced them.
func normalize(v map[string]any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return out, nil
}

// withKey returns the normalized doc with the query fields stamped on, so a
// stored document always matches the query it was written under.
func withKey(q Query, doc Document) (Document, error) {
	merged := make(map[string]any, len(doc)+len(q))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range q {
		merged[k] = v
	}
	out, err := normalize(merged)
	if err != nil {
		return nil, err
	}
	return Document(out), nil
}

// Matches reports whether doc contains q, following Postgres jsonb @> semantics.
func Matches(doc Document, q Query) bool {
	return contains(map[string]any(doc), map[string]any(q))
}

func contains(have, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		h, ok := have.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			hv, ok := h[k]
			if !ok || !contains(hv, wv) {
				return false
			}
		}
		return true
	case []any:
		h, ok := have.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, hv := range h {
				if contains(hv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return have == want
	}
}

package search

import (
	"context"
	"time"

	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
)

// Indexer is what the reconciler needs from the search side. *Elastic
// satisfies it; tests use a fake.
type Indexer interface {
	Mirror
	Snapshot(ctx context.Context, index string) (map[string]string, error)
}

// Reconciler repairs drift between a store collection and its index:
// scan the store, diff against the index by id and updated timestamp,
// push missing or stale documents, and delete index orphans. The dual
// writes on the request path stay non-transactional; this is the manual
// recovery for a crash between them.
type Reconciler struct {
	store store.Store
	index Indexer
}

func NewReconciler(s store.Store, idx Indexer) *Reconciler {
	return &Reconciler{store: s, index: idx}
}

type Report struct {
	Checked int
	Pushed  int
	Deleted int
}

func (r *Reconciler) Run(ctx context.Context, collection, index string) (Report, error) {
	var report Report

	docs, err := r.store.Get(ctx, collection, store.QueryOptions{Limit: -1})
	if err != nil {
		return report, err
	}
	indexed, err := r.index.Snapshot(ctx, index)
	if err != nil {
		return report, err
	}

	for _, doc := range docs {
		report.Checked++
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		current, ok := indexed[id]
		delete(indexed, id)
		if ok && !stale(current, doc["updated"]) {
			continue
		}
		if err := r.index.Post(ctx, index, id, WithSemanticCopies(doc)); err != nil {
			logger.Warnf("reconcile: push %s failed: %v", id, err)
			continue
		}
		report.Pushed++
	}

	// anything left in the snapshot has no store counterpart
	for id := range indexed {
		if err := r.index.Remove(ctx, index, id); err != nil {
			logger.Warnf("reconcile: delete orphan %s failed: %v", id, err)
			continue
		}
		report.Deleted++
	}

	return report, nil
}

func stale(indexedUpdated string, storeUpdated interface{}) bool {
	st, ok := storeUpdated.(time.Time)
	if !ok {
		return false
	}
	it, err := time.Parse(time.RFC3339Nano, indexedUpdated)
	if err != nil {
		return true
	}
	return st.After(it)
}

// semanticFields are the text fields duplicated into *_semantic copies
// for the index's semantic matching pipeline.
var semanticFields = []string{"title", "description"}

// WithSemanticCopies returns the document with denormalized *_semantic
// duplicates of its text fields, the shape the index expects.
func WithSemanticCopies(doc store.Doc) store.Doc {
	out := store.Doc{}
	for k, v := range doc {
		out[k] = v
	}
	for _, f := range semanticFields {
		if v, ok := doc[f].(string); ok && v != "" {
			out[f+"_semantic"] = v
		}
	}
	return out
}

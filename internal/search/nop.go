package search

import (
	"context"

	"github.com/automatter/rfptrack/internal/apperr"
)

// NopMirror drops every write. Used when no search node is configured so
// the store path keeps working without an index.
type NopMirror struct{}

func (NopMirror) Post(ctx context.Context, index, id string, doc map[string]interface{}) error {
	return nil
}

func (NopMirror) Patch(ctx context.Context, index, id string, doc map[string]interface{}) error {
	return nil
}

func (NopMirror) Remove(ctx context.Context, index, id string) error {
	return nil
}

// NopSearcher fails every query; search routes surface the missing
// configuration instead of pretending the index is empty.
type NopSearcher struct{}

func (NopSearcher) Search(ctx context.Context, index string, query map[string]interface{}) (map[string]interface{}, error) {
	return nil, apperr.Wrap(apperr.ErrValidation, "no search node configured")
}

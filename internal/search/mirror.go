// Package search pushes denormalized copies of store documents into the
// hosted search index. Writes here are best-effort: the document store is
// the source of truth and is never rolled back because of a mirror
// failure. Drift is repaired by the reconciler, not by retries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/automatter/rfptrack/pkg/logger"
	"github.com/automatter/rfptrack/pkg/metrics"
)

// Mirror is the write-side interface the route handlers depend on.
type Mirror interface {
	Post(ctx context.Context, index, id string, doc map[string]interface{}) error
	Patch(ctx context.Context, index, id string, doc map[string]interface{}) error
	Remove(ctx context.Context, index, id string) error
}

// Elastic implements Mirror plus query passthrough on an Elasticsearch
// cluster.
type Elastic struct {
	client *elasticsearch.Client
}

type Config struct {
	Node   string
	APIKey string
}

func NewElastic(cfg Config) (*Elastic, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Node},
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch new client: %w", err)
	}
	return &Elastic{client: client}, nil
}

func (e *Elastic) Post(ctx context.Context, index, id string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return e.fail("post", id, err)
	}
	res, err := e.client.Index(index, bytes.NewReader(body),
		e.client.Index.WithDocumentID(id),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return e.fail("post", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return e.fail("post", id, fmt.Errorf("index: %s", res.String()))
	}
	return nil
}

func (e *Elastic) Patch(ctx context.Context, index, id string, doc map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"doc": doc})
	if err != nil {
		return e.fail("patch", id, err)
	}
	res, err := e.client.Update(index, id, bytes.NewReader(body),
		e.client.Update.WithContext(ctx),
	)
	if err != nil {
		return e.fail("patch", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return e.fail("patch", id, fmt.Errorf("update: %s", res.String()))
	}
	return nil
}

func (e *Elastic) Remove(ctx context.Context, index, id string) error {
	res, err := e.client.Delete(index, id, e.client.Delete.WithContext(ctx))
	if err != nil {
		return e.fail("remove", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return e.fail("remove", id, fmt.Errorf("delete: %s", res.String()))
	}
	return nil
}

func (e *Elastic) fail(op, id string, err error) error {
	metrics.MirrorFailures.WithLabelValues(op).Inc()
	logger.Warnf("search mirror %s failed for %s: %v", op, id, err)
	return err
}

// Search forwards a raw query body to the index and returns the decoded
// response. Used by the solicitations search route as a passthrough.
func (e *Elastic) Search(ctx context.Context, index string, query map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.String())
	}
	return decodeBody(res)
}

// Snapshot returns id -> updated for every document in the index. The
// reconciler diffs this against the store.
func (e *Elastic) Snapshot(ctx context.Context, index string) (map[string]string, error) {
	query := map[string]interface{}{
		"query":   map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":    10000,
		"_source": []string{"updated"},
	}
	resp, err := e.Search(ctx, index, query)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	hits, _ := resp["hits"].(map[string]interface{})
	hitList, _ := hits["hits"].([]interface{})
	for _, h := range hitList {
		hit, _ := h.(map[string]interface{})
		id, _ := hit["_id"].(string)
		if id == "" {
			continue
		}
		source, _ := hit["_source"].(map[string]interface{})
		updated, _ := source["updated"].(string)
		out[id] = updated
	}
	return out, nil
}

// Wipe deletes every document in the index. Used by the full reindex
// script before a bulk push.
func (e *Elastic) Wipe(ctx context.Context, index string) error {
	body := []byte(`{"query":{"match_all":{}}}`)
	res, err := e.client.DeleteByQuery([]string{index}, bytes.NewReader(body),
		e.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query: %s", res.String())
	}
	return nil
}

func decodeBody(res *esapi.Response) (map[string]interface{}, error) {
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

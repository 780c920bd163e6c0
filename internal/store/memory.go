package store

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
)

// Memory is an in-memory Store used by unit tests. It mirrors the Mongo
// implementation's semantics: same stamping, same filter grammar, same
// normalization.
type Memory struct {
	mu        sync.RWMutex
	cols      map[string]map[string]Doc
	order     map[string][]string // insertion order per collection
	opts      Options
	validator Validator
}

func NewMemory(opts Options, validator Validator) *Memory {
	return &Memory{
		cols:      map[string]map[string]Doc{},
		order:     map[string][]string{},
		opts:      opts,
		validator: validator,
	}
}

func (m *Memory) collection(p Path) map[string]Doc {
	c, ok := m.cols[p.Collection]
	if !ok {
		c = map[string]Doc{}
		m.cols[p.Collection] = c
	}
	return c
}

func (m *Memory) Get(_ context.Context, path string, q QueryOptions) ([]Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.match(p, q)
	if q.Sort != "" {
		field, dir := parseSort(q.Sort)
		sort.SliceStable(matched, func(i, j int) bool {
			c, ok := compare(matched[i][field], matched[j][field])
			if !ok {
				return false
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		})
	}

	// pagination: lastId cursor when provided, page skip otherwise
	if q.LastID != "" {
		for i, d := range matched {
			if d["_id"] == q.LastID {
				matched = matched[i+1:]
				break
			}
		}
	} else if q.page() > 1 {
		if limit := q.limit(); limit > 0 {
			skip := (q.page() - 1) * limit
			if skip >= len(matched) {
				matched = nil
			} else {
				matched = matched[skip:]
			}
		}
	}
	if limit := q.limit(); limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	results := []Doc{}
	for _, d := range matched {
		results = append(results, normalizeDoc(d, m.opts.HiddenPrefix, q.ShowPrivate))
	}
	return results, nil
}

// match returns raw docs (with _id) in insertion order that satisfy the
// parent scope and filters.
func (m *Memory) match(p Path, q QueryOptions) []Doc {
	out := []Doc{}
	col := m.cols[p.Collection]
	for _, id := range m.order[p.Collection] {
		doc, ok := col[id]
		if !ok {
			continue
		}
		if p.ParentID != "" && doc["parentId"] != p.ParentID {
			continue
		}
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		out = append(out, doc)
	}
	return out
}

func matchesFilters(doc Doc, filters map[string]interface{}) bool {
	for field, value := range filters {
		if value == nil || value == "" {
			continue
		}
		current := doc[mongoField(field)]
		for _, c := range filterConds(value) {
			if !condMatches(current, c) {
				return false
			}
		}
	}
	return true
}

func condMatches(current interface{}, c cond) bool {
	if c.op == "eq" {
		if arr, ok := c.value.([]interface{}); ok {
			for _, v := range arr {
				if reflect.DeepEqual(current, v) {
					return true
				}
			}
			return reflect.DeepEqual(current, arr)
		}
		if cmp, ok := compare(current, c.value); ok {
			return cmp == 0
		}
		return reflect.DeepEqual(current, c.value)
	}
	cmp, ok := compare(current, c.value)
	if !ok {
		return false
	}
	switch c.op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	}
	return false
}

func (m *Memory) Count(ctx context.Context, path string, q QueryOptions) (int64, error) {
	p, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.match(p, q))), nil
}

func (m *Memory) GetByID(_ context.Context, path, id string) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.cols[p.Collection]
	if key, ok := strings.CutPrefix(id, "k_"); ok {
		for _, docID := range m.order[p.Collection] {
			if doc := col[docID]; doc != nil && doc["key"] == key {
				return normalizeDoc(doc, m.opts.HiddenPrefix, false), nil
			}
		}
		return nil, apperr.ErrNotFound
	}
	doc, ok := col[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return normalizeDoc(doc, m.opts.HiddenPrefix, false), nil
}

func (m *Memory) Post(_ context.Context, path string, doc Doc, ident *identity.Identity) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	stripped := stripSystem(doc)
	if m.validator != nil {
		if err := m.validator.Validate(p.Collection, stripped); err != nil {
			return nil, err
		}
	}
	data := coerceDoc(stripped)
	now := time.Now().UTC()
	id := uuid.NewString()
	data["_id"] = id
	data["created"] = now
	data["updated"] = now
	if ident != nil {
		data["authorId"] = ident.UID
	}
	if p.ParentID != "" {
		data["parentId"] = p.ParentID
	}

	m.mu.Lock()
	m.collection(p)[id] = deepCopy(data)
	m.order[p.Collection] = append(m.order[p.Collection], id)
	m.mu.Unlock()

	return normalizeDoc(data, m.opts.HiddenPrefix, false), nil
}

func (m *Memory) Patch(_ context.Context, path, id string, partial Doc) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	set := sanitize(partial)
	set["updated"] = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collection(p)[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for k, v := range set {
		doc[k] = deepCopyValue(v)
	}
	return normalizeDoc(doc, m.opts.HiddenPrefix, false), nil
}

func (m *Memory) Remove(_ context.Context, path, id string) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.collection(p)
	if _, ok := col[id]; !ok {
		return "", apperr.ErrNotFound
	}
	delete(col, id)
	return id, nil
}

func deepCopy(doc Doc) Doc {
	out := Doc{}
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopy(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = deepCopyValue(inner)
		}
		return out
	default:
		return v
	}
}

// Package store translates slash-delimited collection paths into calls
// against the document database. Documents are schemaless maps; the store
// stamps system fields (id, created, updated, authorId) and normalizes
// store-native values to wire-friendly ones on the way out.
package store

import (
	"context"
	"strings"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
)

// Doc is a schemaless document keyed by an opaque string id.
type Doc = map[string]interface{}

// QueryOptions carries the list-query parameters parsed from the query
// string: equality/range filters, sort, and pagination.
type QueryOptions struct {
	Filters      map[string]interface{}
	Sort         string
	Page         int
	Limit        int
	LastID       string
	ShowPrivate  bool
	ParentDBPath string
}

// Options configures field conventions explicitly instead of inferring
// them from naming. Fields whose name starts with HiddenPrefix are elided
// from results unless QueryOptions.ShowPrivate is set.
type Options struct {
	HiddenPrefix string
}

// Validator checks a document against the collection's registered schema
// before it is written. A nil Validator means no schema enforcement.
type Validator interface {
	Validate(collection string, doc Doc) error
}

// Store is the document store adapter. Implementations: Mongo (production)
// and Memory (tests).
type Store interface {
	Get(ctx context.Context, path string, q QueryOptions) ([]Doc, error)
	Count(ctx context.Context, path string, q QueryOptions) (int64, error)
	GetByID(ctx context.Context, path, id string) (Doc, error)
	Post(ctx context.Context, path string, doc Doc, ident *identity.Identity) (Doc, error)
	Patch(ctx context.Context, path, id string, partial Doc) (Doc, error)
	Remove(ctx context.Context, path, id string) (string, error)
}

// Path is a parsed collection address. Nested paths ("parent/{id}/child")
// map to the collection "parent.child" scoped by a parentId field.
type Path struct {
	Collection string
	ParentID   string
}

// ParsePath validates a slash path of one or three segments.
func ParsePath(p string) (Path, error) {
	segments := []string{}
	for _, s := range strings.Split(strings.Trim(p, "/"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	switch len(segments) {
	case 1:
		return Path{Collection: segments[0]}, nil
	case 3:
		return Path{Collection: segments[0] + "." + segments[2], ParentID: segments[1]}, nil
	default:
		return Path{}, apperr.Wrap(apperr.ErrValidation, "invalid collection path %q", p)
	}
}

// JoinPath prepends a parent path to a model path, mirroring the
// parentDbPath addressing of the list routes.
func JoinPath(parent, p string) string {
	parent = strings.Trim(parent, "/")
	p = strings.Trim(p, "/")
	if parent == "" {
		return p
	}
	return parent + "/" + p
}

const defaultLimit = 20

func (q QueryOptions) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	if q.Limit < 0 {
		return 0 // explicit "no limit"
	}
	return defaultLimit
}

func (q QueryOptions) page() int {
	if q.Page > 1 {
		return q.Page
	}
	return 1
}

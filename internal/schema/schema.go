// Package schema holds per-collection JSON schemas checked before a
// document is created. Collections without a registered schema are
// schemaless and accept any shape.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/store"
)

// Registry compiles and holds schemas keyed by collection name. It
// satisfies store.Validator.
type Registry struct {
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*jsonschema.Schema{}}
}

// Register compiles the schema document and binds it to the collection.
func (r *Registry) Register(collection string, schema []byte) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema for %s is empty", collection)
	}
	id := "inmemory://" + collection
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(id, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", collection, err)
	}
	r.schemas[collection] = compiled
	return nil
}

// Validate checks doc against the collection's schema, if one is
// registered. Mismatches surface as ErrValidation.
func (r *Registry) Validate(collection string, doc store.Doc) error {
	compiled, ok := r.schemas[collection]
	if !ok {
		return nil
	}
	payload, err := normalize(doc)
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, "normalize payload")
	}
	if err := compiled.Validate(payload); err != nil {
		return apperr.Wrap(apperr.ErrValidation, "%v", err)
	}
	return nil
}

// normalize round-trips through JSON so the validator sees plain decoded
// values rather than Go-native ones.
func normalize(doc store.Doc) (interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Default schemas for the collections with a fixed shape. Everything else
// (solicitations, comments, logs) is schemaless by design.
var (
	StatSchema = []byte(`{
	"type": "object",
	"required": ["key", "value", "periodType", "startDate", "endDate"],
	"properties": {
		"key": {"type": "string", "minLength": 1},
		"value": {"type": "number"},
		"periodType": {"enum": ["day", "week", "month"]},
		"startDate": {"type": "string"},
		"endDate": {"type": "string"},
		"authorId": {"type": "string"}
	}
}`)

	ScriptLogSchema = []byte(`{
	"type": "object",
	"required": ["scriptName"],
	"properties": {
		"scriptName": {"type": "string", "minLength": 1},
		"successCount": {"type": "integer", "minimum": 0},
		"errorCount": {"type": "integer", "minimum": 0},
		"message": {"type": "string"},
		"authorId": {"type": "string"}
	}
}`)

	UserPatchSchema = []byte(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"email": {"type": "string", "format": "email"},
		"displayName": {"type": "string", "minLength": 2, "maxLength": 100},
		"photoURL": {"type": "string", "format": "uri"}
	}
}`)
)

// DefaultRegistry returns a registry preloaded with the fixed-shape
// collection schemas.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.Register("stats", StatSchema); err != nil {
		return nil, err
	}
	if err := r.Register("scriptLogs", ScriptLogSchema); err != nil {
		return nil, err
	}
	if err := r.Register("users.patch", UserPatchSchema); err != nil {
		return nil, err
	}
	return r, nil
}

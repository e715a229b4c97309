// Package schema provides the optional collaborator spec §4.2 references: it maps
// queue names to payload schemas, constraining which queues may be registered and
// optionally owning their queue-assertion options.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/miladsoleymani/coworkers/transport"
)

// Registry is the schema collaborator interface the Queue Registry consults.
type Registry interface {
	// Resolves reports whether name is a known queue and, if so, the
	// queue-assertion options the schema owns for it.
	Resolves(name string) (transport.QueueOptions, bool)

	// Validate checks body against the schema registered for name. Implementations
	// should return nil when name has no registered schema (pass-through).
	Validate(name string, body []byte) error
}

// entry pairs a compiled JSON Schema with the queue-assertion options the schema
// owns for that queue.
type entry struct {
	compiled *jsonschema.Schema
	opts     transport.QueueOptions
}

// JSONSchema is a Registry backed by github.com/santhosh-tekuri/jsonschema/v6,
// grounded on the same library's use for payload validation elsewhere in the
// retrieved example pack (fxsml-gopipe/message/jsonschema).
type JSONSchema struct {
	compiler *jsonschema.Compiler
	entries  map[string]entry
}

// NewJSONSchema creates an empty schema registry.
func NewJSONSchema() *JSONSchema {
	return &JSONSchema{
		compiler: jsonschema.NewCompiler(),
		entries:  make(map[string]entry),
	}
}

// Register compiles schemaJSON and associates it with queue name, along with the
// queue-assertion options the schema owns for that queue.
func (r *JSONSchema) Register(name string, schemaJSON string, opts transport.QueueOptions) error {
	uri := "urn:coworkers:schema:" + name
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("coworkers/schema: parse schema for %q: %w", name, err)
	}
	if err := r.compiler.AddResource(uri, doc); err != nil {
		return fmt.Errorf("coworkers/schema: add resource for %q: %w", name, err)
	}
	compiled, err := r.compiler.Compile(uri)
	if err != nil {
		return fmt.Errorf("coworkers/schema: compile schema for %q: %w", name, err)
	}
	r.entries[name] = entry{compiled: compiled, opts: opts}
	return nil
}

func (r *JSONSchema) Resolves(name string) (transport.QueueOptions, bool) {
	e, ok := r.entries[name]
	if !ok {
		return transport.QueueOptions{}, false
	}
	return e.opts, true
}

func (r *JSONSchema) Validate(name string, body []byte) error {
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("coworkers/schema: decode payload for %q: %w", name, err)
	}
	if err := e.compiled.Validate(v); err != nil {
		return fmt.Errorf("coworkers/schema: validate %q: %w", name, err)
	}
	return nil
}

package metadata

import (
	"sort"
	"sync"
)

// Destination names registered mapping documents are keyed by.
const (
	DestinationCSV     = "metadata.csv"
	DestinationROCrate = "ro-crate-metadata.json"
)

// Registry holds the registered question schemas and mapping documents.
// The engine treats its contents as already-resolved, immutable inputs;
// reloading replaces whole documents, never mutates them.
type Registry struct {
	mu       sync.RWMutex
	schemas  map[string]*Schema
	mappings map[string]map[string]*MappingDocument // schema id -> destination -> document
}

func NewRegistry() *Registry {
	return &Registry{
		schemas:  make(map[string]*Schema),
		mappings: make(map[string]map[string]*MappingDocument),
	}
}

// RegisterSchema stores the question schema for a schema id.
func (r *Registry) RegisterSchema(schemaID string, schema *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schemaID] = schema
}

// RegisterMapping stores a mapping document for a (schema id, destination) pair.
func (r *Registry) RegisterMapping(schemaID, destination string, doc *MappingDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mappings[schemaID] == nil {
		r.mappings[schemaID] = make(map[string]*MappingDocument)
	}
	r.mappings[schemaID][destination] = doc
}

// Schema returns the question schema registered for the schema id, or nil.
func (r *Registry) Schema(schemaID string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[schemaID]
}

// Mapping returns the mapping document for a (schema id, destination) pair,
// or nil.
func (r *Registry) Mapping(schemaID, destination string) *MappingDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mappings[schemaID][destination]
}

// HasSchema reports whether any mapping document is registered for the
// schema id.
func (r *Registry) HasSchema(schemaID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings[schemaID]) > 0
}

// SchemaIDs returns all schema ids with registered mappings, sorted.
func (r *Registry) SchemaIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.mappings))
	for id := range r.mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

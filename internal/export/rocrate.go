package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"metadata-export/internal/engine"
)

// roCrateContext is the fixed @context of every generated crate.
var roCrateContext = []any{
	"https://w3id.org/ro/crate/1.1/context",
	map[string]any{"@vocab": "http://schema.org/"},
	map[string]any{"dc": "http://purl.org/dc/elements/1.1/"},
	map[string]any{"dcterms": "http://purl.org/dc/terms/"},
	map[string]any{"datacite": "https://purl.org/spar/datacite/"},
	map[string]any{"rdm": "https://purl.org/rdm/ontology/"},
	map[string]any{"wk": "https://purl.org/rdm/weko/"},
	map[string]any{"@language": "en"},
}

type crateDocument struct {
	Context []any            `json:"@context"`
	Graph   []map[string]any `json:"@graph"`
}

func writeCrate(w io.Writer, graph []map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(crateDocument{Context: roCrateContext, Graph: graph})
}

// BuildHierarchy assigns each stream pair into a nested object by dotted,
// optionally array-indexed path. Indexed segments grow the target list,
// padding with null up to the index. Assigning through a non-container is
// a mapping-document bug.
//
// Emission values can alias the caller's metadata records (list-typed
// variables pass through evaluation verbatim), and the flattener annotates
// entities in place, so the hierarchy takes deep copies.
func BuildHierarchy(stream []engine.Emission) (map[string]any, error) {
	root := map[string]any{}
	for _, em := range stream {
		if err := assign(root, em.Path, copyValue(em.Value)); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			out[key] = copyValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, nested := range v {
			out[i] = copyValue(nested)
		}
		return out
	default:
		return value
	}
}

type pathSegment struct {
	name  string
	index int // -1 when the segment is not indexed
}

func splitPath(path string) ([]pathSegment, error) {
	parts := strings.Split(strings.TrimPrefix(path, "."), ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg := pathSegment{name: part, index: -1}
		if strings.HasSuffix(part, "]") {
			open := strings.LastIndex(part, "[")
			if open < 0 {
				return nil, engine.NewConfigurationError("malformed path segment %q in %q", part, path)
			}
			index, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || index < 0 {
				return nil, engine.NewConfigurationError("malformed array index in %q", path)
			}
			seg.name = part[:open]
			seg.index = index
		}
		if seg.name == "" {
			return nil, engine.NewConfigurationError("empty path segment in %q", path)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func assign(root map[string]any, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	cur := root
	for i, seg := range segments {
		last := i == len(segments)-1

		if seg.index < 0 {
			if last {
				if _, exists := cur[seg.name]; exists {
					return engine.NewConfigurationError("path %q collides with an existing container", path)
				}
				cur[seg.name] = value
				return nil
			}
			next, exists := cur[seg.name]
			if !exists {
				child := map[string]any{}
				cur[seg.name] = child
				cur = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return engine.NewConfigurationError("path %q descends through a non-object", path)
			}
			cur = child
			continue
		}

		var list []any
		if raw, exists := cur[seg.name]; exists {
			var ok bool
			if list, ok = raw.([]any); !ok {
				return engine.NewConfigurationError("path %q indexes into a non-list", path)
			}
		}
		for len(list) <= seg.index {
			list = append(list, nil)
		}
		cur[seg.name] = list

		if last {
			if list[seg.index] != nil {
				return engine.NewConfigurationError("path %q collides with an existing element", path)
			}
			list[seg.index] = value
			return nil
		}
		switch element := list[seg.index].(type) {
		case nil:
			child := map[string]any{}
			list[seg.index] = child
			cur = child
		case map[string]any:
			cur = element
		default:
			return engine.NewConfigurationError("path %q descends through a non-object element", path)
		}
	}
	return nil
}

// graphFlattener owns the per-run blank-node counters and the accumulated
// entity list. One flattener per flattening run, never reused.
type graphFlattener struct {
	counters map[string]int
	entities []map[string]any
}

// FlattenGraph runs the bilingual-pairing pre-pass and then extracts every
// nested typed object into a flat, id-sorted entity list.
func FlattenGraph(root map[string]any) ([]map[string]any, error) {
	f := &graphFlattener{counters: map[string]int{}}

	if err := f.pairBilingual(root); err != nil {
		return nil, err
	}
	if _, err := f.extract(root); err != nil {
		return nil, err
	}

	sort.Slice(f.entities, func(i, j int) bool {
		return entityID(f.entities[i]) < entityID(f.entities[j])
	})
	return f.entities, nil
}

func entityID(entity map[string]any) string {
	id, _ := entity["@id"].(string)
	return id
}

func (f *graphFlattener) mint(typeName string) string {
	f.counters[typeName]++
	return fmt.Sprintf("_:%s%d", typeName, f.counters[typeName])
}

// extract registers the entity in the graph, assigning a blank-node id when
// it carries none, and replaces each nested typed object with a reference.
func (f *graphFlattener) extract(entity map[string]any) (string, error) {
	id := entityID(entity)
	if id == "" {
		id = f.mint(typeName(entity))
		entity["@id"] = id
	}
	f.entities = append(f.entities, entity)

	for _, key := range sortedKeys(entity) {
		flattened, err := f.flattenValue(entity[key])
		if err != nil {
			return "", err
		}
		entity[key] = flattened
	}
	return id, nil
}

func (f *graphFlattener) flattenValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if isReference(v) {
			return v, nil
		}
		if hasType(v) {
			id, err := f.extract(v)
			if err != nil {
				return nil, err
			}
			return map[string]any{"@id": id}, nil
		}
		for _, key := range sortedKeys(v) {
			flattened, err := f.flattenValue(v[key])
			if err != nil {
				return nil, err
			}
			v[key] = flattened
		}
		return v, nil

	case []any:
		for i, element := range v {
			flattened, err := f.flattenValue(element)
			if err != nil {
				return nil, err
			}
			v[i] = flattened
		}
		return v, nil

	default:
		return value, nil
	}
}

// isReference reports whether the map is a pure {"@id": x} reference.
func isReference(m map[string]any) bool {
	_, ok := m["@id"]
	return ok && len(m) == 1
}

func hasType(m map[string]any) bool {
	_, ok := m["@type"]
	return ok
}

func typeName(entity map[string]any) string {
	switch t := entity["@type"].(type) {
	case string:
		if t != "" {
			return t
		}
	case []any:
		for _, candidate := range t {
			if s, ok := candidate.(string); ok && s != "" {
				return s
			}
		}
	}
	return "Entity"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

package engine

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"metadata-export/internal/metadata"
)

// Emission is one (target path, value) pair of the generation stream.
type Emission struct {
	Path  string
	Value any
}

// Walker interprets one mapping document into the emission stream. It owns
// the per-run index table and emitted-path bookkeeping; construct a fresh
// walker for every generation.
type Walker struct {
	ev       *Evaluator
	resolver *Resolver
	table    *IndexTable
	schema   *metadata.Schema
	log      zerolog.Logger
	emitted  map[string]any
}

func NewWalker(ev *Evaluator, resolver *Resolver, table *IndexTable, schema *metadata.Schema, log zerolog.Logger) *Walker {
	return &Walker{
		ev:       ev,
		resolver: resolver,
		table:    table,
		schema:   schema,
		log:      log,
		emitted:  make(map[string]any),
	}
}

// Run walks every top-level mapping key and returns the emission stream in
// sorted target-path order.
func (w *Walker) Run(doc *metadata.MappingDocument) ([]Emission, error) {
	for _, key := range doc.Keys() {
		question, err := w.question(key)
		if err != nil {
			return nil, err
		}

		bindings, err := w.resolver.Resolve(key)
		if err != nil {
			return nil, err
		}

		for _, binding := range bindings {
			for _, node := range doc.Rules[key] {
				if node.IsLeaf {
					return nil, NewConfigurationError(
						"mapping rule for %q is a bare expression with no target path", key)
				}
				if gatedHere(node) {
					pass, err := w.gate(node, binding.Entry, binding.Variables, question)
					if err != nil {
						return nil, err
					}
					if !pass {
						continue
					}
				}
				if err := w.walk(node, "", binding.Entry, binding.Variables, question); err != nil {
					return nil, err
				}
			}
		}
	}
	return w.stream(), nil
}

func (w *Walker) question(key string) (*metadata.Question, error) {
	if strings.HasPrefix(key, "@") {
		return nil, nil
	}
	question := w.schema.Question(key)
	if question == nil {
		return nil, NewConfigurationError("question %q referenced by mapping rules not found in schema", key)
	}
	return question, nil
}

func (w *Walker) walk(node *metadata.RuleNode, prefix string, entry metadata.Entry, vars map[string]any, question *metadata.Question) error {
	if node.IsLeaf {
		value, err := w.ev.Evaluate(entry, node.Leaf, vars, question)
		if err != nil {
			return err
		}
		return w.emit(prefix, value)
	}

	switch node.Type {
	case metadata.TypeString:
		return w.walkChildren(node, prefix, entry, vars, question)

	case metadata.TypeArray, metadata.TypeJSONArray:
		elements, ok := w.arrayElements(node.Type, entry, prefix)
		if !ok {
			return nil
		}
		for _, element := range elements {
			synthetic := metadata.Entry{Object: element}
			pass, err := w.gate(node, synthetic, vars, question)
			if err != nil {
				return err
			}
			if !pass {
				continue
			}
			if err := w.walkChildren(node, prefix, synthetic, vars, question); err != nil {
				return err
			}
		}
		return nil

	case metadata.TypeObject, metadata.TypeJSONObject:
		value, ok := w.objectValue(node.Type, entry, prefix)
		if !ok {
			return nil
		}
		synthetic := metadata.Entry{Object: value}
		pass, err := w.gate(node, synthetic, vars, question)
		if err != nil {
			return err
		}
		if !pass {
			return nil
		}
		return w.walkChildren(node, prefix, synthetic, vars, question)

	default:
		return NewConfigurationError("unknown @type %q at %q", node.Type, prefix)
	}
}

// walkChildren recurses into a branch's child target-path segments against
// the current source entry. String-typed children are gated here; array and
// object children gate themselves against their synthetic per-element source.
func (w *Walker) walkChildren(node *metadata.RuleNode, prefix string, entry metadata.Entry, vars map[string]any, question *metadata.Question) error {
	for _, key := range node.ChildKeys() {
		for _, child := range node.Children[key] {
			if gatedHere(child) {
				pass, err := w.gate(child, entry, vars, question)
				if err != nil {
					return err
				}
				if !pass {
					continue
				}
			}

			childPrefix := w.table.Resolve(prefix + "." + key)
			if err := w.walk(child, childPrefix, entry, vars, question); err != nil {
				return err
			}
		}
	}
	return nil
}

// gatedHere reports whether a node's @createIf is checked against the
// current source. Array- and object-typed nodes gate themselves against
// their synthetic per-element source instead.
func gatedHere(node *metadata.RuleNode) bool {
	return !node.IsLeaf && node.Type == metadata.TypeString && node.CreateIf != ""
}

func (w *Walker) gate(node *metadata.RuleNode, entry metadata.Entry, vars map[string]any, question *metadata.Question) (bool, error) {
	if node.IsLeaf || node.CreateIf == "" {
		return true, nil
	}
	return w.ev.EvaluateCondition(entry, node.CreateIf, vars, question)
}

// arrayElements reads the list an array-typed node fans out over. A value
// of the wrong shape degrades to a logged skip, never an abort.
func (w *Walker) arrayElements(typ string, entry metadata.Entry, path string) ([]any, bool) {
	switch typ {
	case metadata.TypeJSONArray:
		if entry.Value == nil {
			return nil, true
		}
		encoded, ok := entry.Value.(string)
		if !ok {
			w.skip(path, "jsonarray value is not a JSON string")
			return nil, false
		}
		if strings.TrimSpace(encoded) == "" {
			return nil, true
		}
		var elements []any
		if err := json.Unmarshal([]byte(encoded), &elements); err != nil {
			w.skip(path, "jsonarray value is not a JSON-encoded list")
			return nil, false
		}
		return elements, true

	default: // metadata.TypeArray
		if entry.Value == nil {
			return nil, true
		}
		elements, ok := entry.Value.([]any)
		if !ok {
			w.skip(path, "array value is not a list")
			return nil, false
		}
		return elements, true
	}
}

func (w *Walker) objectValue(typ string, entry metadata.Entry, path string) (any, bool) {
	if typ == metadata.TypeJSONObject {
		if entry.Value == nil {
			return nil, false
		}
		encoded, ok := entry.Value.(string)
		if !ok {
			w.skip(path, "jsonobject value is not a JSON string")
			return nil, false
		}
		if strings.TrimSpace(encoded) == "" {
			return nil, false
		}
		var value map[string]any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			w.skip(path, "jsonobject value is not a JSON-encoded object")
			return nil, false
		}
		return value, true
	}

	if entry.Value == nil {
		return nil, false
	}
	value, ok := entry.Value.(map[string]any)
	if !ok {
		w.skip(path, "object value is not an object")
		return nil, false
	}
	return value, true
}

func (w *Walker) skip(path, reason string) {
	w.log.Warn().Str("path", path).Str("reason", reason).Msg("skipping mapping node")
}

// emit records one stream pair. Re-emitting the identical value at a path
// is a no-op; a different value at an already-emitted path is fatal.
func (w *Walker) emit(path string, value any) error {
	if previous, seen := w.emitted[path]; seen {
		if canonical(previous) == canonical(value) {
			return nil
		}
		return NewConflictError("mapping branches assign different values to %q", path)
	}
	w.emitted[path] = value
	return nil
}

func (w *Walker) stream() []Emission {
	paths := make([]string, 0, len(w.emitted))
	for path := range w.emitted {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	stream := make([]Emission, len(paths))
	for i, path := range paths {
		stream[i] = Emission{Path: path, Value: w.emitted[path]}
	}
	return stream
}

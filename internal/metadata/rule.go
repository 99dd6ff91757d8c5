package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Node types accepted by the @type directive.
const (
	TypeString     = "string"
	TypeArray      = "array"
	TypeJSONArray  = "jsonarray"
	TypeObject     = "object"
	TypeJSONObject = "jsonobject"
)

// The reserved top-level key carrying item-type metadata. It is the one key
// that is never alias-expanded.
const metadataKey = "@metadata"

// RuleNode is one node of a mapping-rule tree: either a leaf template
// expression or a typed branch with child target-path segments. Any raw
// shape outside this variant set is rejected at parse time.
type RuleNode struct {
	IsLeaf   bool
	Leaf     string
	Type     string
	CreateIf string
	Children map[string][]*RuleNode
}

// ChildKeys returns the branch's child target-path segments in sorted order.
func (n *RuleNode) ChildKeys() []string {
	keys := make([]string, 0, len(n.Children))
	for key := range n.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ItemType identifies the destination item type of a mapping document.
type ItemType struct {
	Name      string `json:"name"`
	SchemaURI string `json:"schema"`
}

// MappingDocument is one registered mapping-rule document for a
// (schema, destination) pair, with space-separated alias keys expanded.
type MappingDocument struct {
	ItemType ItemType
	Rules    map[string][]*RuleNode
}

// Keys returns the mapping's source keys in sorted order. The walk follows
// this order so that a repeated generation is deterministic.
func (d *MappingDocument) Keys() []string {
	keys := make([]string, 0, len(d.Rules))
	for key := range d.Rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ParseMappingDocument decodes a raw mapping-rule blob into the node
// variant tree. Aliased keys ("a b c") are expanded into one entry per
// alias before any node is processed.
func ParseMappingDocument(raw []byte) (*MappingDocument, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode mapping document: %w", err)
	}

	doc := &MappingDocument{Rules: map[string][]*RuleNode{}}
	for key, value := range root {
		if key == metadataKey {
			itemType, err := parseItemType(value)
			if err != nil {
				return nil, err
			}
			doc.ItemType = itemType
			continue
		}

		nodes, err := parseRuleItems(value)
		if err != nil {
			return nil, fmt.Errorf("mapping key %q: %w", key, err)
		}
		for _, alias := range strings.Fields(key) {
			doc.Rules[alias] = append(doc.Rules[alias], nodes...)
		}
	}
	return doc, nil
}

func parseItemType(value any) (ItemType, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ItemType{}, fmt.Errorf("encode %s block: %w", metadataKey, err)
	}
	var block struct {
		ItemType ItemType `json:"itemtype"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return ItemType{}, fmt.Errorf("decode %s block: %w", metadataKey, err)
	}
	return block.ItemType, nil
}

// parseRuleItems accepts a leaf expression, an object node, or a list of
// either, and returns the normalized node list.
func parseRuleItems(raw any) ([]*RuleNode, error) {
	if items, ok := raw.([]any); ok {
		nodes := make([]*RuleNode, 0, len(items))
		for i, item := range items {
			node, err := parseRuleNode(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	}

	node, err := parseRuleNode(raw)
	if err != nil {
		return nil, err
	}
	return []*RuleNode{node}, nil
}

func parseRuleNode(raw any) (*RuleNode, error) {
	switch value := raw.(type) {
	case string:
		return &RuleNode{IsLeaf: true, Leaf: value}, nil

	case map[string]any:
		node := &RuleNode{Type: TypeString, Children: map[string][]*RuleNode{}}
		for key, child := range value {
			switch {
			case key == "@type":
				typ, ok := child.(string)
				if !ok {
					return nil, fmt.Errorf("@type must be a string, got %T", child)
				}
				switch typ {
				case TypeString, TypeArray, TypeJSONArray, TypeObject, TypeJSONObject:
					node.Type = typ
				default:
					return nil, fmt.Errorf("unknown @type %q", typ)
				}

			case key == "@createIf":
				cond, ok := child.(string)
				if !ok {
					return nil, fmt.Errorf("@createIf must be a string, got %T", child)
				}
				node.CreateIf = cond

			case strings.HasPrefix(key, "@"):
				return nil, fmt.Errorf("unknown directive %q", key)

			default:
				children, err := parseRuleItems(child)
				if err != nil {
					return nil, fmt.Errorf("child %q: %w", key, err)
				}
				node.Children[key] = children
			}
		}
		return node, nil

	default:
		return nil, fmt.Errorf("rule node must be a string or object, got %T", raw)
	}
}

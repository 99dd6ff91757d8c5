package export

import (
	"encoding/json"

	"metadata-export/internal/engine"
)

// bilingualShape names one known container whose sub-items arrive as
// parallel primary-language and alternate-language lists, each item
// JSON-encoded under a conventional field name. This is a fixed table of
// shape handlers, not a general mechanism: a new shape means a new entry
// and its own test, never a new mapping-rule directive.
type bilingualShape struct {
	container string
	item      string
	pairType  string
}

var bilingualShapes = []bilingualShape{
	{container: "affiliation", item: "subitem_belonging", pairType: "Affiliation"},
	{container: "contactPoint", item: "subitem_mail_address", pairType: "ContactPoint"},
	{container: "name", item: "subitem_name", pairType: "PersonName"},
	{container: "keywords", item: "subitem_subject", pairType: "Keyword"},
}

// pairBilingual walks the built hierarchy and re-pairs every occurrence of
// a known bilingual shape before the generic flatten runs.
func (f *graphFlattener) pairBilingual(node any) error {
	switch v := node.(type) {
	case map[string]any:
		for _, shape := range bilingualShapes {
			if err := f.pairShape(v, shape); err != nil {
				return err
			}
		}
		for _, key := range sortedKeys(v) {
			if err := f.pairBilingual(v[key]); err != nil {
				return err
			}
		}
	case []any:
		for _, element := range v {
			if err := f.pairBilingual(element); err != nil {
				return err
			}
		}
	}
	return nil
}

// pairShape interleaves the container's first half (primary language) with
// its second half (alternate language) into [primary, alternate] pairs,
// each tagged with a freshly minted sequential id. An odd-length list means
// the two language lists are mismatched, which is an error rather than a
// silent truncation.
func (f *graphFlattener) pairShape(parent map[string]any, shape bilingualShape) error {
	list, ok := parent[shape.container].([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	carrying := 0
	for _, element := range list {
		item, ok := element.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := item[shape.item]; ok {
			carrying++
		}
	}
	if carrying == 0 {
		return nil
	}
	if carrying != len(list) {
		return engine.NewConfigurationError(
			"bilingual container %q mixes items with and without %q", shape.container, shape.item)
	}
	if len(list)%2 != 0 {
		return engine.NewConfigurationError(
			"bilingual container %q has odd length %d", shape.container, len(list))
	}

	half := len(list) / 2
	paired := make([]any, 0, half)
	for i := 0; i < half; i++ {
		primary, err := decodeSubitem(list[i], shape)
		if err != nil {
			return err
		}
		alternate, err := decodeSubitem(list[i+half], shape)
		if err != nil {
			return err
		}
		paired = append(paired, map[string]any{
			"@id":      f.mint(shape.pairType),
			"@type":    shape.pairType,
			shape.item: []any{primary, alternate},
		})
	}
	parent[shape.container] = paired
	return nil
}

func decodeSubitem(element any, shape bilingualShape) (any, error) {
	item := element.(map[string]any) // shape membership verified by caller
	value := item[shape.item]
	encoded, ok := value.(string)
	if !ok {
		return value, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		return nil, engine.NewConfigurationError(
			"bilingual sub-item %q is not JSON-encoded: %v", shape.item, err)
	}
	return decoded, nil
}

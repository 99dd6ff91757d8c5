package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	"metadata-export/internal/metadata"
)

// Merge combines same-key entries contributed by multiple records. Empty
// contributions lose to non-empty ones; identical non-empty duplicates
// collapse to one. When non-empty contributions truly disagree the key is
// silently dropped, unless it is listed in checkDuplicates, in which case
// the disagreement is a fatal conflict.
func Merge(records []metadata.Record, checkDuplicates []string) (metadata.Record, error) {
	mustAgree := make(map[string]bool, len(checkDuplicates))
	for _, key := range checkDuplicates {
		mustAgree[key] = true
	}

	keySet := map[string]bool{}
	for _, rec := range records {
		for key := range rec {
			keySet[key] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := metadata.Record{}
	for _, key := range keys {
		var all, nonEmpty []metadata.Entry
		for _, rec := range records {
			entry, ok := rec[key]
			if !ok {
				continue
			}
			all = append(all, entry)
			if !entryEmpty(entry) {
				nonEmpty = append(nonEmpty, entry)
			}
		}

		switch len(nonEmpty) {
		case 0:
			merged[key] = all[0]
		case 1:
			merged[key] = nonEmpty[0]
		default:
			first := canonical(nonEmpty[0])
			agree := true
			for _, entry := range nonEmpty[1:] {
				if canonical(entry) != first {
					agree = false
					break
				}
			}
			if agree {
				merged[key] = nonEmpty[0]
				continue
			}
			if mustAgree[key] {
				return nil, NewConflictError("sources disagree on %q", key)
			}
			// True conflict on a key nobody requires agreement for: drop it.
		}
	}
	return merged, nil
}

func entryEmpty(entry metadata.Entry) bool {
	return IsEmptyValue(entry.Value) && IsEmptyValue(entry.Object)
}

// IsEmptyValue reports emptiness in the merge sense: empty string, empty
// list, empty map, and maps whose values are all empty recursively.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		for _, nested := range v {
			if !IsEmptyValue(nested) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// canonical JSON-normalizes a value for equality comparison. Map keys are
// sorted by the encoder, so equal values always encode identically.
func canonical(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%#v", value)
	}
	return string(raw)
}

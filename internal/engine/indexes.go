package engine

import (
	"fmt"
	"strings"
)

// IndexTable assigns stable, deduplicated positional indices to repeated
// array-valued target paths within one generation run. Two mapping branches
// that address the same base path with the same identity token converge to
// the same numeric index; distinct elements receive contiguous indices
// starting at 0. A table must never outlive or be shared across runs.
type IndexTable struct {
	assigned map[string][]string // base path -> identity tokens in assignment order
}

func NewIndexTable() *IndexTable {
	return &IndexTable{assigned: make(map[string][]string)}
}

// Resolve replaces a trailing "[identity]" suffix with the numeric index
// assigned to that identity. An empty identity ("[]") always takes a fresh
// index. Paths without a bracket suffix pass through unchanged.
func (t *IndexTable) Resolve(path string) string {
	if !strings.HasSuffix(path, "]") {
		return path
	}
	open := strings.LastIndex(path, "[")
	if open < 0 {
		return path
	}

	base := path[:open]
	identity := path[open+1 : len(path)-1]
	tokens := t.assigned[base]

	if identity != "" {
		for i, token := range tokens {
			if token == identity {
				return fmt.Sprintf("%s[%d]", base, i)
			}
		}
	}
	t.assigned[base] = append(tokens, identity)
	return fmt.Sprintf("%s[%d]", base, len(tokens))
}

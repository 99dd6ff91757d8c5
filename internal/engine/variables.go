package engine

import (
	"strings"

	"github.com/rs/zerolog"

	"metadata-export/internal/metadata"
)

var keyNormalizer = strings.NewReplacer("-", "_", ":", "_", ".", "_")

// normalizeKey turns a composite record key into a valid variable name.
func normalizeKey(key string) string {
	return keyNormalizer.Replace(key)
}

// ExtractVariables flattens one metadata entry into the flat variable
// context consumed by expression rendering. The "value" variable is always
// present; option-backed questions additionally expose "tooltip" and its
// bilingual "tooltip_0"/"tooltip_1" halves, and compound answers are
// flattened under the "object_" prefix.
func ExtractVariables(entry metadata.Entry, question *metadata.Question, log zerolog.Logger) map[string]any {
	vars := map[string]any{"value": ""}
	if entry.Value != nil {
		vars["value"] = entry.Value
	}

	applyOptions(vars, question)

	if entry.Object != nil {
		obj, ok := entry.Object.(map[string]any)
		if !ok {
			log.Warn().Interface("object", entry.Object).
				Msg("compound answer is not an object, skipping flatten")
			return vars
		}
		flattenInto(vars, "object", obj)
	}
	return vars
}

// applyOptions substitutes the canonical option text and tooltip variables
// when the record value matches a schema option (or the default option when
// the value is empty). Malformed option lists are never fatal.
func applyOptions(vars map[string]any, question *metadata.Question) {
	if question == nil || len(question.Options) == 0 {
		return
	}

	text, _ := vars["value"].(string)
	var chosen *metadata.Option
	if text == "" {
		for i := range question.Options {
			if question.Options[i].Default {
				chosen = &question.Options[i]
				break
			}
		}
	} else {
		for i := range question.Options {
			if question.Options[i].Text == text {
				chosen = &question.Options[i]
				break
			}
		}
	}
	if chosen == nil {
		return
	}

	vars["value"] = chosen.Text
	vars["tooltip"] = chosen.Tooltip
	primary, alternate := chosen.Tooltip, chosen.Tooltip
	if i := strings.Index(chosen.Tooltip, "|"); i >= 0 {
		primary, alternate = chosen.Tooltip[:i], chosen.Tooltip[i+1:]
	}
	vars["tooltip_0"] = primary
	vars["tooltip_1"] = alternate
}

func flattenInto(vars map[string]any, prefix string, obj map[string]any) {
	for key, value := range obj {
		name := prefix + "_" + normalizeKey(key)
		if nested, ok := value.(map[string]any); ok {
			flattenInto(vars, name, nested)
			continue
		}
		vars[name] = value
	}
}

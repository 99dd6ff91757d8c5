package metadata

import (
	"encoding/json"
	"fmt"
)

// Option is one selectable answer of a questionnaire question. Tooltip text
// follows the bilingual "primary|alternate" convention.
type Option struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// Question is the authoring definition behind one target-path key.
type Question struct {
	QID     string   `json:"qid"`
	Options []Option `json:"options,omitempty"`
}

// SchemaPage groups questions the way the questionnaire presents them.
type SchemaPage struct {
	Questions []Question `json:"questions"`
}

// Schema is the question catalog of one registered metadata schema.
type Schema struct {
	Pages []SchemaPage `json:"pages"`
}

// ParseSchema decodes a registered schema blob.
func ParseSchema(raw []byte) (*Schema, error) {
	var schema Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	return &schema, nil
}

// Question returns the question with the given id, or nil.
func (s *Schema) Question(qid string) *Question {
	for p := range s.Pages {
		for q := range s.Pages[p].Questions {
			if s.Pages[p].Questions[q].QID == qid {
				return &s.Pages[p].Questions[q]
			}
		}
	}
	return nil
}

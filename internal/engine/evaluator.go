package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"metadata-export/internal/metadata"
)

// Evaluator renders mapping expressions against one metadata entry plus a
// caller-supplied variable context. Rendering uses text/template so output
// is never HTML-escaped; unknown variables render empty. Boolean @createIf
// conditions without template markers are compiled with expr-lang and the
// programs cached per expression string.
type Evaluator struct {
	log   zerolog.Logger
	funcs template.FuncMap
	conds map[string]*vm.Program
}

func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{
		log: log,
		funcs: template.FuncMap{
			"jsonproperty": jsonProperty,
			"license":      licenseField,
		},
		conds: make(map[string]*vm.Program),
	}
}

// Evaluate resolves one leaf expression. A context variable bound to a list
// is returned verbatim: list values feed array and object directives and
// are never string-interpolated.
func (ev *Evaluator) Evaluate(entry metadata.Entry, expression string, vars map[string]any, question *metadata.Question) (any, error) {
	ctx := ev.context(entry, vars, question)
	if value, ok := ctx[expression]; ok {
		if list, isList := value.([]any); isList {
			return list, nil
		}
	}
	return ev.render(expression, ctx)
}

// EvaluateCondition decides a @createIf gate. Conditions carrying template
// markers are rendered and tested for truthiness; anything else is an
// expr-lang boolean program over the same variable context.
func (ev *Evaluator) EvaluateCondition(entry metadata.Entry, condition string, vars map[string]any, question *metadata.Question) (bool, error) {
	ctx := ev.context(entry, vars, question)

	if strings.Contains(condition, "{{") {
		rendered, err := ev.render(condition, ctx)
		if err != nil {
			return false, err
		}
		return rendered != "", nil
	}

	prog, ok := ev.conds[condition]
	if !ok {
		var err error
		prog, err = expr.Compile(condition, expr.AsBool())
		if err != nil {
			return false, NewConfigurationError("compile condition %q: %v", condition, err)
		}
		ev.conds[condition] = prog
	}

	result, err := expr.Run(prog, ctx)
	if err != nil {
		return false, NewConfigurationError("evaluate condition %q: %v", condition, err)
	}
	isTrue, ok := result.(bool)
	if !ok {
		return false, NewConfigurationError("condition %q did not return bool", condition)
	}
	return isTrue, nil
}

func (ev *Evaluator) context(entry metadata.Entry, vars map[string]any, question *metadata.Question) map[string]any {
	ctx := ExtractVariables(entry, question, ev.log)
	for name, value := range vars {
		ctx[name] = value
	}
	return ctx
}

func (ev *Evaluator) render(expression string, ctx map[string]any) (string, error) {
	tmpl, err := template.New("expression").Option("missingkey=zero").Funcs(ev.funcs).Parse(expression)
	if err != nil {
		return "", NewConfigurationError("parse expression %q: %v", expression, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, stringContext(ctx)); err != nil {
		return "", NewConfigurationError("render expression %q: %v", expression, err)
	}
	return buf.String(), nil
}

// stringContext stringifies the variable context for rendering; a string
// map makes missingkey=zero produce empty output for unknown variables.
func stringContext(ctx map[string]any) map[string]string {
	out := make(map[string]string, len(ctx))
	for name, value := range ctx {
		switch v := value.(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = v
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[name] = string(raw)
		}
	}
	return out
}

// jsonProperty extracts one property from a JSON-encoded object string.
// Malformed JSON means a broken mapping document, not bad user data.
func jsonProperty(encoded, key string) (string, error) {
	if strings.TrimSpace(encoded) == "" {
		return "", nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(encoded), &obj); err != nil {
		return "", fmt.Errorf("jsonproperty: %w", err)
	}
	value, ok := obj[key]
	if !ok || value == nil {
		return "", nil
	}
	if s, isString := value.(string); isString {
		return s, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("jsonproperty: %w", err)
	}
	return string(raw), nil
}

type licenseInfo struct {
	Name string
	URL  string
}

var knownLicenses = map[string]licenseInfo{
	"CC0 1.0 Universal": {
		Name: "CC0 1.0 Universal",
		URL:  "https://creativecommons.org/publicdomain/zero/1.0/legalcode",
	},
	"CC-By Attribution 4.0 International": {
		Name: "CC-By Attribution 4.0 International",
		URL:  "https://creativecommons.org/licenses/by/4.0/legalcode",
	},
	"MIT License": {
		Name: "MIT License",
		URL:  "https://opensource.org/licenses/MIT",
	},
	"Apache License 2.0": {
		Name: "Apache License 2.0",
		URL:  "https://www.apache.org/licenses/LICENSE-2.0",
	},
	"GNU General Public License (GPL) 3.0": {
		Name: "GNU General Public License (GPL) 3.0",
		URL:  "https://www.gnu.org/licenses/gpl-3.0.html",
	},
}

// licenseField resolves metadata of a named license. Unknown licenses render
// empty; an unrecognized accessor field is a mapping-document bug.
func licenseField(name, field string) (string, error) {
	info, ok := knownLicenses[name]
	if !ok {
		return "", nil
	}
	switch field {
	case "name", "text":
		return info.Name, nil
	case "url":
		return info.URL, nil
	default:
		return "", fmt.Errorf("license: unknown accessor %q", field)
	}
}

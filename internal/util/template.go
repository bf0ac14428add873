package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {key} references inside instruction text. Keys
// are identifier-like (letters, digits, underscores, dots) so literal JSON or
// prose braces pass through untouched.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// RenderTemplate substitutes {key} placeholders in text with values from the
// shared session state. Resolution happens at invocation time so downstream
// agents observe the latest writes of upstream agents. A placeholder whose key
// is absent from state is left verbatim; string values are inserted as-is,
// maps and slices are JSON encoded, everything else uses its default Go
// formatting. This lives in internal to avoid committing to public API
// stability prematurely.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{") { // fast path: no placeholders
		return text, nil
	}

	var renderErr error
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := state[key]
		if !ok {
			return match
		}
		s, err := renderValue(v)
		if err != nil && renderErr == nil {
			renderErr = fmt.Errorf("render %q: %w", key, err)
		}
		return s
	})
	if renderErr != nil {
		return "", renderErr
	}

	return out, nil
}

func renderValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

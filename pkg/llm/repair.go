package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// model output parsing: strict JSON first, tolerant repair on failure.
// Either way the caller re-coerces every field against its expected type,
// so a successful repair can't smuggle in a malformed payload.

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	fenceCloseRe = regexp.MustCompile("\\n?```\\s*$")
)

// StripCodeFences removes markdown code fence markers around model output
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseObject parses raw model output into a JSON object. Strict parsing is
// attempted first; on failure a repair pass handles trailing commas,
// unquoted keys, truncation and similar model damage.
func ParseObject(raw string) (map[string]any, error) {
	text := StripCodeFences(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("repair model json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, fmt.Errorf("parse repaired model json: %w", err)
	}
	return obj, nil
}

// AsString coerces a parsed JSON value to a string, empty when absent or null
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsInt coerces a parsed JSON value to an int, handling float64, string and
// json.Number representations. Zero when absent or unusable.
func AsInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return i
	case int:
		return n
	}
	return 0
}

// AsBool coerces a parsed JSON value to a bool
func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AsStringList coerces a parsed JSON array to a string slice, dropping
// non-string elements
func AsStringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AsObjectList coerces a parsed JSON array to a slice of objects, dropping
// non-object elements
func AsObjectList(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

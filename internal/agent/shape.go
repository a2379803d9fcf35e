package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CleanJSON strips markdown code fences and surrounding prose, returning the first balanced
// JSON array or object in the text. When no block is found the trimmed text is returned.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(stripCodeFences(raw))
	if block := extractJSONBlock(s); block != "" {
		return block
	}
	return s
}

// NormalizeList turns a model response into a list of raw JSON items. Accepted shapes, in order:
//
//	[ ... ]                       a bare array
//	{"<preferred key>": [ ... ]}  the first preferred key holding an array, other keys ignored
//	{"<any key>": [ ... ]}        an object whose only value is an array
//
// Anything else fails with KindMalformed (not JSON) or KindShape (JSON of the wrong shape).
func NormalizeList(raw string, preferredKeys ...string) ([]json.RawMessage, error) {
	const op = "normalize list"

	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return nil, newError(KindEmpty, op, errors.New("empty response"))
	}

	switch cleaned[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return nil, newError(KindMalformed, op, err)
		}
		return items, nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
			return nil, newError(KindMalformed, op, err)
		}
		for _, key := range preferredKeys {
			if items, ok := asArray(obj[key]); ok {
				return items, nil
			}
		}
		if len(obj) == 1 {
			for key, v := range obj {
				if items, ok := asArray(v); ok {
					return items, nil
				}
				return nil, newError(KindShape, op, fmt.Errorf("sole key %q does not hold an array", key))
			}
		}
		return nil, newError(KindShape, op, fmt.Errorf("object with %d keys has no list", len(obj)))

	default:
		if json.Valid([]byte(cleaned)) {
			return nil, newError(KindShape, op, errors.New("expected an array or object"))
		}
		return nil, newError(KindMalformed, op, errors.New("response is not JSON"))
	}
}

// DecodeObject parses a JSON object from a model response into out.
func DecodeObject(raw string, out any) error {
	const op = "decode object"

	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return newError(KindEmpty, op, errors.New("empty response"))
	}
	if cleaned[0] != '{' {
		return newError(KindShape, op, errors.New("expected a JSON object"))
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return newError(KindMalformed, op, err)
	}
	return nil
}

func asArray(v json.RawMessage) ([]json.RawMessage, bool) {
	v = json.RawMessage(strings.TrimSpace(string(v)))
	if len(v) == 0 || v[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, false
	}
	return items, true
}

// stripCodeFences drops ``` fence lines, keeping what was inside them.
func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// extractJSONBlock finds the first balanced [ ... ] or { ... } block, ignoring brackets inside strings.
func extractJSONBlock(s string) string {
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

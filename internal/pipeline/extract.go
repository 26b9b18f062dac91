// File: internal/pipeline/extract.go
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON object in model output")

// ExtractJSON pulls the first well-formed JSON object out of raw model
// output. Providers wrap JSON in markdown fences or prose despite being
// told not to, so the surface shape is never trusted: candidates are found
// by balanced-brace scanning and validated with the real parser.
func ExtractJSON(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errNoJSON
	}

	// Fast path: a fenced block usually holds exactly the object.
	if block, ok := fencedBlock(text); ok {
		if obj, err := parseObject(block); err == nil {
			return obj, nil
		}
	}

	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end, ok := matchBrace(text, start)
		if !ok {
			continue
		}
		if obj, err := parseObject(text[start : end+1]); err == nil {
			return obj, nil
		}
	}
	return nil, errNoJSON
}

// fencedBlock returns the body of the first ``` fence, with any language
// tag line stripped.
func fencedBlock(s string) (string, bool) {
	i := strings.Index(s, "```")
	if i < 0 {
		return "", false
	}
	rest := s[i+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	j := strings.Index(rest, "```")
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// matchBrace returns the index of the brace closing the object opened at
// start, honoring quoted strings and escapes.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// RequireKeys enforces an agent's output contract.
func RequireKeys(obj map[string]any, keys []string) error {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return fmt.Errorf("missing required field %q", k)
		}
	}
	return nil
}

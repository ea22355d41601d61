// Package lenient parses JSON documents produced by language models, which
// tend to wrap objects in code fences or chatter, emit invalid escapes, or
// leave trailing commas. Missing or mistyped fields are replaced from a
// schema of defaults so callers always read a complete document.
package lenient

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/titanous/json5"
)

// ErrNoJSON is returned when no JSON object can be recovered from the input.
var ErrNoJSON = errors.New("no JSON object in model output")

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("empty model output")

// extractObject recovers the first JSON object from raw model text.
func extractObject(raw string) (map[string]any, error) {
	content := stripRolePrefix(strings.TrimSpace(raw))
	if content == "" {
		return nil, ErrEmpty
	}
	content = StripFences(content)

	if obj, ok := decodeObject(content); ok {
		return obj, nil
	}

	// Objects embedded in prose: "Segue a análise:\n{...}\nObrigado."
	if start, end := findObjectBounds(content); start >= 0 {
		if obj, ok := decodeObject(content[start:end]); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSON
}

// decodeObject tries strict JSON, then JSON with escapes repaired, then JSON5.
func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	obj = nil
	if err := json.Unmarshal([]byte(sanitizeJSONEscapes(s)), &obj); err == nil && obj != nil {
		return obj, true
	}
	obj = nil
	if err := json5.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) >= 3 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return content
}

// findObjectBounds locates the first balanced top-level {...} in s and
// returns its start index and end+1, or (-1, -1).
func findObjectBounds(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// stripRolePrefix removes chat-template role names some models leak into
// their output ("assistant\n{...}").
func stripRolePrefix(content string) string {
	for _, p := range []string{"assistant\n", "Assistant\n", "assistant:", "Assistant:"} {
		if strings.HasPrefix(content, p) {
			return strings.TrimSpace(content[len(p):])
		}
	}
	return content
}

// sanitizeJSONEscapes drops the backslash from escape sequences JSON does
// not allow (\% or \Y), keeping valid ones intact.
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' {
			inString = !inString
			buf.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
				buf.WriteByte(s[i+1])
				i++
			}
			continue
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}

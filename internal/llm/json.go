package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when no JSON object can be recovered from a model
// answer.
var ErrNoJSON = eris.New("llm: no JSON object in response")

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON recovers the JSON object in a model answer. It tries, in
// order: the whole text, each balanced {...} span, each fenced ```json
// block, and finally a repair of the outermost {...} span.
func ExtractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	if obj, ok := parseObject(text); ok {
		return obj, nil
	}
	for _, span := range balancedObjects(text) {
		if obj, ok := parseObject(span); ok {
			return obj, nil
		}
	}
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, nil
		}
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 {
		return nil, ErrNoJSON
	}
	candidate := text[start:]
	if end > start {
		candidate = text[start : end+1]
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, ErrNoJSON
	}
	if obj, ok := parseObject(repaired); ok {
		return obj, nil
	}
	return nil, ErrNoJSON
}

// DecodeJSON recovers the JSON object in text and decodes it into v.
func DecodeJSON(text string, v any) error {
	obj, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return eris.Wrap(err, "llm: re-encode json")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return eris.Wrap(err, "llm: decode json")
	}
	return nil
}

func parseObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedObjects returns every top-level {...} span whose braces balance,
// ignoring braces inside JSON strings.
func balancedObjects(s string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, s[start:i+1])
			}
		}
	}
	return spans
}

package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```[A-Za-z]*")

// Answer is model output decoded into a JSON object. When the text was not a
// JSON object, Structured is false and Fields holds the cleaned text under
// the fallback key.
type Answer struct {
	Fields     map[string]any `json:"fields"`
	Structured bool           `json:"structured"`
	Raw        string         `json:"-"`
}

// StripFences removes markdown code fence markers (with or without a
// language tag) and surrounding whitespace.
func StripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// ParseStructured strips fences and decodes the first JSON object in raw.
// It never fails; unusable text is wrapped as {fallbackKey: text}.
func ParseStructured(raw, fallbackKey string) Answer {
	cleaned := StripFences(raw)

	if fields, ok := decodeObject(cleaned); ok {
		return Answer{Fields: fields, Structured: true, Raw: raw}
	}

	// Models sometimes wrap the object in prose.
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if fields, ok := decodeObject(cleaned[start : end+1]); ok {
			return Answer{Fields: fields, Structured: true, Raw: raw}
		}
	}

	return Answer{
		Fields:     map[string]any{fallbackKey: cleaned},
		Structured: false,
		Raw:        raw,
	}
}

func decodeObject(s string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

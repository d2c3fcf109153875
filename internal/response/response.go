// Package response extracts and validates structured content from raw
// model output. Models wrap JSON in code fences or prose often enough
// that decoding the raw text directly is not reliable.
package response

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FormatError reports model output that could not be decoded into the
// expected shape. Callers use it to decide whether to re-prompt.
type FormatError struct {
	Reason string
	Raw    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// ExtractJSON returns the first balanced JSON object or array found in
// raw, stripping markdown code fences and surrounding prose. shape is
// the opening delimiter to look for, '{' or '['.
func ExtractJSON(raw string, shape byte) (string, error) {
	if shape != '{' && shape != '[' {
		return "", fmt.Errorf("unsupported shape %q", shape)
	}
	text := stripFences(raw)

	start := strings.IndexByte(text, shape)
	if start < 0 {
		return "", &FormatError{Reason: fmt.Sprintf("no %q found", shape), Raw: raw}
	}

	closer := byte('}')
	if shape == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
			inString = true
		case shape:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", &FormatError{Reason: "unbalanced JSON delimiters", Raw: raw}
}

// Decode extracts a JSON object from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	shape := byte('{')
	if _, ok := v.(*[]string); ok {
		shape = '['
	}
	doc, err := ExtractJSON(raw, shape)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return &FormatError{Reason: err.Error(), Raw: raw}
	}
	return nil
}

// DecodeStringList handles the common case of a model returning a JSON
// array of strings, possibly as an object with a single array field.
func DecodeStringList(raw string) ([]string, error) {
	var list []string
	if err := Decode(raw, &list); err == nil {
		return list, nil
	}
	var obj map[string]json.RawMessage
	if err := Decode(raw, &obj); err != nil {
		return nil, err
	}
	for _, v := range obj {
		if err := json.Unmarshal(v, &list); err == nil {
			return list, nil
		}
	}
	return nil, &FormatError{Reason: "no string array found", Raw: raw}
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func stripFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// NumericTokens returns every number literal in s, in order.
func NumericTokens(s string) []string {
	return numberPattern.FindAllString(s, -1)
}

// NumericMismatches returns the numbers in statements that do not appear
// anywhere in source. A generated "P < 0.5" against a source that only
// says "P < 0.05" is flagged; matching values pass regardless of the
// phrasing around them.
func NumericMismatches(statements []string, source string) []string {
	seen := make(map[string]struct{})
	for _, tok := range NumericTokens(source) {
		seen[tok] = struct{}{}
	}
	var mismatched []string
	for _, stmt := range statements {
		for _, tok := range NumericTokens(stmt) {
			if _, ok := seen[tok]; !ok {
				mismatched = append(mismatched, tok)
			}
		}
	}
	return mismatched
}

package handler

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// ParseAccountIDs decodes a gateway body into account IDs.
//
// A nil or empty body is treated as "[]". Malformed JSON returns a plain
// error; a value that is not a non-empty array returns *InvalidInputError.
// Elements that are not strings are used as their raw JSON text, so 123
// becomes "123" and null becomes "null".
func ParseAccountIDs(body *string) ([]string, error) {
	raw := []byte("[]")
	if body != nil && *body != "" {
		raw = []byte(*body)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse request body: %w", err)
	}

	items, ok := decoded.([]any)
	if !ok {
		return nil, &InvalidInputError{Got: kindOf(decoded)}
	}
	if len(items) == 0 {
		return nil, &InvalidInputError{Got: "empty array"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("parse request body: %w", err)
	}

	ids := make([]string, 0, len(elements))
	for _, element := range elements {
		element = bytes.TrimSpace(element)
		if len(element) > 0 && element[0] == '"' {
			var id string
			if err := json.Unmarshal(element, &id); err != nil {
				return nil, fmt.Errorf("parse account id: %w", err)
			}
			ids = append(ids, id)
			continue
		}
		ids = append(ids, string(element))
	}

	return ids, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

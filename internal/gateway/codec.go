package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"storyhub/pkg/models"
)

// DecodeStrict decodes a document and fails with models.ErrMalformedDocument on bad content.
// Used by mutations, which must not overwrite a document they could not understand.
func DecodeStrict[T any](name models.DocumentName, content []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(content)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(content, &v); err != nil {
		return v, fmt.Errorf("%s: %w: %v", name, models.ErrMalformedDocument, err)
	}
	return v, nil
}

// DecodeInto decodes over an already populated value, so fields absent from content keep
// their current value. Used to merge stored settings over defaults.
func DecodeInto[T any](name models.DocumentName, content []byte, v *T) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("%s: %w: %v", name, models.ErrMalformedDocument, err)
	}
	return nil
}

// Encode renders a document the way it is stored on disk
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

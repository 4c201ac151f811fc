// Package codec converts between raw bytes, base64 text and JSON payloads.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"docconv/internal/domain"
)

// BytesToBase64 returns the standard (padded) base64 encoding of b.
func BytesToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64ToBytes decodes standard base64 text.
func Base64ToBytes(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.E(domain.KindDecode, "base64", err)
	}
	return b, nil
}

// DictToBase64 serializes m as JSON and base64 encodes the result.
func DictToBase64(m map[string]any) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", domain.E(domain.KindSerialization, "json", err)
	}
	return BytesToBase64(raw), nil
}

// Base64ToDict decodes base64 text holding a JSON object.
func Base64ToDict(s string) (map[string]any, error) {
	var m map[string]any
	if err := Base64ToValue(s, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.Errorf(domain.KindParse, "json", "payload is not a JSON object")
	}
	return m, nil
}

// Base64ToValue decodes base64 text and unmarshals the JSON inside into v.
func Base64ToValue(s string, v any) error {
	raw, err := Base64ToBytes(s)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return domain.E(domain.KindParse, "json", err)
	}
	if dec.More() {
		return domain.Errorf(domain.KindParse, "json", "unexpected data after JSON value")
	}
	return nil
}

// ReadFileBase64 returns the base64 encoding of the file at path.
func ReadFileBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return BytesToBase64(data), nil
}

// WriteFileFromBase64 decodes s and writes the bytes to path, returning the
// number of bytes written.
func WriteFileFromBase64(path, s string) (int, error) {
	data, err := Base64ToBytes(s)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(data), nil
}

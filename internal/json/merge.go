package json

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Field is one key to set on a JSON object. A nil Value deletes the key.
type Field struct {
	Key   string
	Value interface{}
}

// Set returns a Field that assigns value to key.
func Set(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Delete returns a Field that removes key.
func Delete(key string) Field {
	return Field{Key: key}
}

// Merge returns a copy of obj with fields applied in order. obj itself is
// never modified. An empty obj is treated as {}.
func Merge(obj json.RawMessage, fields ...Field) (json.RawMessage, error) {
	out := make([]byte, len(obj))
	copy(out, obj)
	if len(gjson.ParseBytes(out).Raw) == 0 {
		out = []byte("{}")
	}
	if !gjson.ValidBytes(out) || !gjson.ParseBytes(out).IsObject() {
		return nil, fmt.Errorf("cannot merge into non-object input: %s", string(obj))
	}

	var err error
	for _, f := range fields {
		if f.Value == nil {
			out, err = sjson.DeleteBytes(out, f.Key)
		} else {
			out, err = sjson.SetBytes(out, f.Key, f.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("merge %q: %w", f.Key, err)
		}
	}
	return json.RawMessage(out), nil
}

// String reads a top-level string field, or "" when absent.
func String(obj json.RawMessage, key string) string {
	return gjson.GetBytes(obj, key).String()
}

// Int reads a top-level integer field, or 0 when absent.
func Int(obj json.RawMessage, key string) int {
	return int(gjson.GetBytes(obj, key).Int())
}

// Has reports whether key is present.
func Has(obj json.RawMessage, key string) bool {
	return gjson.GetBytes(obj, key).Exists()
}

package edusiap

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// M is a schema-less record: field name to value.
type M map[string]interface{}

func (m M) String(k string) string {
	v, ok := m[k].(string)
	if !ok {
		return ""
	}
	return v
}

func (m M) HasString(k string) bool {
	_, ok := m[k].(string)
	return ok
}

// Int returns integral values regardless of how they were decoded.
func (m M) Int(k string) int64 {
	v, _ := asInt(m[k])
	return v
}

func (m M) HasInt(k string) bool {
	_, ok := asInt(m[k])
	return ok
}

func (m M) Bool(k string) bool {
	v, ok := m[k].(bool)
	if !ok {
		return false
	}
	return v
}

func (m M) HasBool(k string) bool {
	_, ok := m[k].(bool)
	return ok
}

func (m M) Float(k string) float64 {
	switch v := m[k].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	}

	if i, ok := asInt(m[k]); ok {
		return float64(i)
	}
	return 0
}

func (m M) HasFloat(k string) bool {
	_, ok := m[k].(float64)
	return ok
}

// Key returns the primary key stored under field.
func (m M) Key(field string) (Key, error) {
	v, ok := m[field]
	if !ok {
		return Key{}, errors.Wrapf(ErrMissingKey, "field %s", field)
	}
	return KeyOf(v)
}

// Path reads a nested value using gjson path syntax, e.g. "alamat.kota".
func (m M) Path(path string) (gjson.Result, error) {
	b, err := encodeRecord(m)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(b, path), nil
}

func asInt(v interface{}) (int64, bool) {
	switch typed := v.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if k, err := floatKey(typed); err == nil {
			return k.num, true
		}
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n, true
		}
	}

	return 0, false
}

func encodeRecord(m M) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "could not marshal record %+v", m)
	}
	return b, nil
}

func decodeRecord(b []byte) (M, error) {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	var m map[string]interface{}
	if err := d.Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal record %s", string(b))
	}

	return M(normalizeNumbers(m).(map[string]interface{})), nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64 otherwise.
func normalizeNumbers(v interface{}) interface{} {
	switch typed := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(typed.String(), 10, 64); err == nil {
			return n
		}
		f, _ := typed.Float64()
		return f
	case map[string]interface{}:
		for k, item := range typed {
			typed[k] = normalizeNumbers(item)
		}
		return typed
	case []interface{}:
		for i, item := range typed {
			typed[i] = normalizeNumbers(item)
		}
		return typed
	}

	return v
}

const gjsonSpecialChars = `\.*?|#@!%`

// escapePath makes a plain field name safe to use as a gjson path.
func escapePath(field string) string {
	if !strings.ContainsAny(field, gjsonSpecialChars) {
		return field
	}

	var sb strings.Builder
	for _, r := range field {
		if strings.ContainsRune(gjsonSpecialChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

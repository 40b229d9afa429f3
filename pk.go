package edusiap

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Key is a primary key value. Keys are either integers or strings;
// integers always sort before strings.
type Key struct {
	num   int64
	str   string
	isStr bool
}

var minKey = Key{num: math.MinInt64}

func IntKey(n int64) Key {
	return Key{num: n}
}

func StringKey(s string) Key {
	return Key{str: s, isStr: true}
}

func (k Key) IsString() bool {
	return k.isStr
}

func (k Key) Int() int64 {
	return k.num
}

// Value returns the key as it is stored inside a record: int64 or string.
func (k Key) Value() interface{} {
	if k.isStr {
		return k.str
	}
	return k.num
}

func (k Key) String() string {
	if k.isStr {
		return k.str
	}
	return strconv.FormatInt(k.num, 10)
}

func (k Key) Equal(other Key) bool {
	return k.isStr == other.isStr && k.num == other.num && k.str == other.str
}

func (k Key) Less(other Key) bool {
	if k.isStr != other.isStr {
		return !k.isStr
	}

	if k.isStr {
		return k.str < other.str
	}

	return k.num < other.num
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Value())
}

// KeyOf converts a Go value into a Key. Integral numbers of any width and
// strings are accepted, everything else yields ErrInvalidKey.
func KeyOf(v interface{}) (Key, error) {
	switch typed := v.(type) {
	case Key:
		return typed, nil
	case string:
		return StringKey(typed), nil
	case int:
		return IntKey(int64(typed)), nil
	case int8:
		return IntKey(int64(typed)), nil
	case int16:
		return IntKey(int64(typed)), nil
	case int32:
		return IntKey(int64(typed)), nil
	case int64:
		return IntKey(typed), nil
	case uint:
		return uintKey(uint64(typed))
	case uint8:
		return IntKey(int64(typed)), nil
	case uint16:
		return IntKey(int64(typed)), nil
	case uint32:
		return IntKey(int64(typed)), nil
	case uint64:
		return uintKey(typed)
	case float32:
		return floatKey(float64(typed))
	case float64:
		return floatKey(typed)
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return IntKey(n), nil
		}
		f, err := typed.Float64()
		if err != nil {
			return Key{}, errors.Wrapf(ErrInvalidKey, "%s is not a number", typed.String())
		}
		return floatKey(f)
	case nil:
		return Key{}, ErrMissingKey
	}

	return Key{}, errors.Wrapf(ErrInvalidKey, "type %T cannot be used as a key", v)
}

func uintKey(n uint64) (Key, error) {
	if n > math.MaxInt64 {
		return Key{}, errors.Wrapf(ErrInvalidKey, "%d overflows int64", n)
	}
	return IntKey(int64(n)), nil
}

func floatKey(f float64) (Key, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return Key{}, errors.Wrapf(ErrInvalidKey, "%v is not an integral key", f)
	}
	return IntKey(int64(f)), nil
}

// keyFromJSON reads the primary key stored at field of a raw record.
func keyFromJSON(raw []byte, field string) (Key, error) {
	res := gjson.GetBytes(raw, escapePath(field))
	switch res.Type {
	case gjson.String:
		return StringKey(res.Str), nil
	case gjson.Number:
		return KeyOf(json.Number(res.Raw))
	case gjson.Null:
		if !res.Exists() {
			return Key{}, errors.Wrapf(ErrMissingKey, "field %s", field)
		}
	}

	return Key{}, errors.Wrapf(ErrInvalidKey, "field %s holds %s", field, res.Raw)
}

func byPrimaryKeys(a, b interface{}) bool {
	i1, i2 := a.(*entry), b.(*entry)
	return i1.key.Less(i2.key)
}

package edusiap

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Less(t *testing.T) {
	tt := []struct {
		name string
		a, b Key
		less bool
	}{
		{"ints", IntKey(1), IntKey(2), true},
		{"ints reversed", IntKey(11), IntKey(2), false},
		{"negative", IntKey(-5), IntKey(0), true},
		{"equal ints", IntKey(7), IntKey(7), false},
		{"strings", StringKey("a"), StringKey("b"), true},
		{"strings are not numeric", StringKey("11"), StringKey("2"), true},
		{"int before string", IntKey(math.MaxInt64), StringKey(""), true},
		{"string after int", StringKey("0"), IntKey(9), false},
		{"min key", minKey, IntKey(math.MinInt64 + 1), true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.less, tc.a.Less(tc.b))
		})
	}
}

func TestKeyOf(t *testing.T) {
	tt := []struct {
		in   interface{}
		want Key
	}{
		{1, IntKey(1)},
		{int8(-3), IntKey(-3)},
		{int32(40), IntKey(40)},
		{int64(99), IntKey(99)},
		{uint16(7), IntKey(7)},
		{uint64(12), IntKey(12)},
		{float64(5), IntKey(5)},
		{float32(6), IntKey(6)},
		{json.Number("17"), IntKey(17)},
		{json.Number("18.0"), IntKey(18)},
		{"NIS-001", StringKey("NIS-001")},
		{StringKey("k"), StringKey("k")},
	}

	for _, tc := range tt {
		k, err := KeyOf(tc.in)
		require.NoError(t, err, "%T(%v)", tc.in, tc.in)
		assert.True(t, tc.want.Equal(k), "%T(%v) gave %s", tc.in, tc.in, k.String())
	}
}

func TestKeyOf_Invalid(t *testing.T) {
	for _, in := range []interface{}{1.5, math.Inf(1), uint64(math.MaxUint64), true, []int{1}, M{}, json.Number("1e400")} {
		_, err := KeyOf(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidKey), "%T(%v)", in, in)
	}

	_, err := KeyOf(nil)
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestKeyFromJSON(t *testing.T) {
	k, err := keyFromJSON([]byte(`{"id":42,"nama":"x"}`), "id")
	require.NoError(t, err)
	assert.True(t, IntKey(42).Equal(k))

	k, err = keyFromJSON([]byte(`{"kode.mapel":"MTK"}`), "kode.mapel")
	require.NoError(t, err)
	assert.True(t, StringKey("MTK").Equal(k))

	_, err = keyFromJSON([]byte(`{"nama":"x"}`), "id")
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = keyFromJSON([]byte(`{"id":null}`), "id")
	assert.True(t, errors.Is(err, ErrInvalidKey))

	_, err = keyFromJSON([]byte(`{"id":[1]}`), "id")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestKey_JSON(t *testing.T) {
	b, err := json.Marshal([]Key{IntKey(3), StringKey("x")})
	require.NoError(t, err)
	assert.Equal(t, `[3,"x"]`, string(b))
}

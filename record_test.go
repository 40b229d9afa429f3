package edusiap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestM_Getters(t *testing.T) {
	m, err := decodeRecord([]byte(`{
		"id": 12,
		"nama": "Ani",
		"aktif": true,
		"nilai": 87.5,
		"alamat": {"kota": "Bandung", "rt": 3},
		"hobi": ["catur", 2]
	}`))
	require.NoError(t, err)

	assert.True(t, m.HasInt("id"))
	assert.Equal(t, int64(12), m.Int("id"))
	assert.Equal(t, float64(12), m.Float("id"))
	assert.False(t, m.HasFloat("id"))

	assert.True(t, m.HasString("nama"))
	assert.Equal(t, "Ani", m.String("nama"))
	assert.False(t, m.HasString("id"))
	assert.Equal(t, "", m.String("id"))

	assert.True(t, m.HasBool("aktif"))
	assert.True(t, m.Bool("aktif"))
	assert.False(t, m.Bool("nama"))

	assert.True(t, m.HasFloat("nilai"))
	assert.Equal(t, 87.5, m.Float("nilai"))
	assert.False(t, m.HasInt("nilai"))

	assert.Equal(t, map[string]interface{}{"kota": "Bandung", "rt": int64(3)}, m["alamat"])
	assert.Equal(t, []interface{}{"catur", int64(2)}, m["hobi"])

	k, err := m.Key("id")
	require.NoError(t, err)
	assert.True(t, IntKey(12).Equal(k))

	_, err = m.Key("nisn")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestM_Path(t *testing.T) {
	m := M{"alamat": M{"kota": "Bandung"}, "nilai.akhir": 90}

	res, err := m.Path("alamat.kota")
	require.NoError(t, err)
	assert.Equal(t, "Bandung", res.String())

	res, err = m.Path(escapePath("nilai.akhir"))
	require.NoError(t, err)
	assert.Equal(t, int64(90), res.Int())
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "nama", escapePath("nama"))
	assert.Equal(t, `kode\.mapel`, escapePath("kode.mapel"))
	assert.Equal(t, `a\*b\?`, escapePath("a*b?"))
}

package edusiap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngine(t *testing.T) *engine {
	t.Helper()

	e, err := newEngine(InMemory, &Config{Logger: zap.NewNop()})
	require.NoError(t, err)

	c := newCollection(CollectionDescriptor{
		Name:          "siswa",
		KeyPath:       "id",
		AutoIncrement: true,
		Indexes:       []IndexDescriptor{{Name: "nisn", KeyPath: "nisn", Unique: true}},
	})

	for i, nisn := range []string{"001", "002"} {
		ent := indexedEntry(t, int64(i+1), M{"nisn": nisn})
		c.set(ent)
		c.advance(ent.key)
	}
	c.seq = 10

	e.collections[c.name()] = c
	e.collections["sekolah"] = newCollection(CollectionDescriptor{Name: "sekolah", KeyPath: "id"})
	e.version = 3

	return e
}

func TestEngine_DumpAndLoad(t *testing.T) {
	src := testEngine(t)

	f, err := src.dump()
	require.NoError(t, err)
	assert.Equal(t, src.id, f.ID)
	assert.Equal(t, 3, f.Version)
	assert.Equal(t, checksum(f.Payload), f.Checksum)

	// the envelope survives a trip through its own encoding
	b, err := json.Marshal(f)
	require.NoError(t, err)

	var back dbFile
	require.NoError(t, json.Unmarshal(b, &back))

	dst, err := newEngine(InMemory, &Config{Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, dst.load(&back))

	assert.Equal(t, src.id, dst.id)
	assert.Equal(t, 3, dst.version)
	assert.Equal(t, []string{"sekolah", "siswa"}, dst.names())

	c := dst.collections["siswa"]
	assert.Equal(t, 2, c.len())
	assert.Equal(t, int64(10), c.seq)
	assert.Equal(t, 2, c.indexes["nisn"].len())

	_, ok := c.desc.Index("nisn")
	assert.True(t, ok)
}

func TestEngine_LoadRejectsTamperedPayload(t *testing.T) {
	f, err := testEngine(t).dump()
	require.NoError(t, err)

	f.Payload = json.RawMessage(`{"collections":[]}`)

	e, err := newEngine(InMemory, &Config{Logger: zap.NewNop()})
	require.NoError(t, err)

	err = e.load(f)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestEngine_LoadRejectsRecordsWithoutKeys(t *testing.T) {
	payload := []byte(`{"collections":[{"name":"siswa","keyPath":"id","sequence":0,"records":[{"nama":"x"}]}]}`)

	e, err := newEngine(InMemory, &Config{Logger: zap.NewNop()})
	require.NoError(t, err)

	err = e.load(&dbFile{Version: 1, Checksum: checksum(payload), Payload: payload})
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestEngine_LoadAdvancesSequence(t *testing.T) {
	payload := []byte(`{"collections":[{"name":"siswa","keyPath":"id","autoIncrement":true,"sequence":1,"records":[{"id":7}]}]}`)

	e, err := newEngine(InMemory, &Config{Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, e.load(&dbFile{Version: 1, Checksum: checksum(payload), Payload: payload}))

	assert.Equal(t, int64(7), e.collections["siswa"].seq)
}

package edusiap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/denismitr/edusiap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigration_FreshStorage(t *testing.T) {
	db := openDB(t, edusiap.InMemory, abConfig(seedA))
	ctx := context.Background()

	err := db.View(ctx, func(tx *edusiap.Tx) error {
		assert.Equal(t, []string{"A", "B"}, tx.Collections())
		assert.Equal(t, 1, tx.Version())
		return nil
	})
	require.NoError(t, err)

	recs := mustList(t, db, "A")
	require.Len(t, recs, 1)
	assert.Equal(t, "default", recs[0].String("v"))

	k, err := db.Store().Add(ctx, "B", edusiap.M{"code": "X1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), k.Int())

	_, err = db.Store().Add(ctx, "B", edusiap.M{"code": "X1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, edusiap.ErrConstraintViolation))

	assert.Len(t, mustList(t, db, "B"), 1)
}

func TestMigration_Idempotent(t *testing.T) {
	db := openDB(t, edusiap.InMemory, abConfig(seedA))

	report, err := db.EnsureSchema(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Empty(t, report.CreatedCollections)
	assert.Empty(t, report.Seeded)

	assert.Len(t, mustList(t, db, "A"), 1)
}

func TestMigration_SeedsOnlyOnUpgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("upgrade seeders stay away from existing storage", func(t *testing.T) {
		db := openDB(t, edusiap.InMemory, abConfig(seedA))
		require.NoError(t, db.Store().Remove(ctx, "A", 1))

		report, err := db.EnsureSchema(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, report.Seeded)
		assert.Empty(t, mustList(t, db, "A"))
	})

	t.Run("every open seeders fill the gap again", func(t *testing.T) {
		everyOpen := seedA
		everyOpen.EveryOpen = true

		db := openDB(t, edusiap.InMemory, abConfig(everyOpen))
		require.NoError(t, db.Store().Remove(ctx, "A", 1))

		report, err := db.EnsureSchema(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"default A"}, report.Seeded)
		assert.Len(t, mustList(t, db, "A"), 1)
	})
}

func TestMigration_Upgrade(t *testing.T) {
	path := tempPath(t)

	db, closer, err := edusiap.Open(path, abConfig())
	require.NoError(t, err)
	mustAdd(t, db, "A", edusiap.M{"v": "kept", "tag": "t1"})
	require.NoError(t, closer())

	v2 := edusiap.MustRegistry(
		edusiap.CollectionDescriptor{
			Name:          "A",
			KeyPath:       "id",
			AutoIncrement: true,
			Indexes:       []edusiap.IndexDescriptor{{Name: "tag", KeyPath: "tag"}},
		},
		edusiap.CollectionDescriptor{Name: "B", KeyPath: "id", AutoIncrement: true},
		edusiap.CollectionDescriptor{Name: "C", KeyPath: "kode"},
	)

	db = openDB(t, path, &edusiap.Config{Version: 2, Registry: v2, Seeders: []edusiap.Seeder{}})
	ctx := context.Background()

	err = db.View(ctx, func(tx *edusiap.Tx) error {
		assert.Equal(t, 2, tx.Version())
		assert.Equal(t, []string{"A", "B", "C"}, tx.Collections())

		// B keeps the index it was created with
		desc, ok := tx.Descriptor("B")
		require.True(t, ok)
		_, ok = desc.Index("code")
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	// the new index was built from the records already stored
	found, err := db.Store().FindByIndex(ctx, "A", "tag", "t1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "kept", found[0].String("v"))

	_, err = db.Store().Add(ctx, "C", edusiap.M{"nama": "no key"})
	assert.True(t, errors.Is(err, edusiap.ErrMissingKey))

	k, err := db.Store().Add(ctx, "C", edusiap.M{"kode": "MTK"})
	require.NoError(t, err)
	assert.Equal(t, "MTK", k.String())
}

func TestMigration_Downgrade(t *testing.T) {
	path := tempPath(t)

	cfg := abConfig()
	cfg.Version = 3
	_, closer, err := edusiap.Open(path, cfg)
	require.NoError(t, err)
	require.NoError(t, closer())

	_, _, err = edusiap.Open(path, abConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, edusiap.ErrInitialization))
}

func TestMigration_UniqueIndexOnDuplicates(t *testing.T) {
	path := tempPath(t)

	loose := edusiap.MustRegistry(edusiap.CollectionDescriptor{Name: "B", KeyPath: "id", AutoIncrement: true})
	db, closer, err := edusiap.Open(path, &edusiap.Config{Version: 1, Registry: loose, Seeders: []edusiap.Seeder{}})
	require.NoError(t, err)
	mustAdd(t, db, "B", edusiap.M{"code": "dup"})
	mustAdd(t, db, "B", edusiap.M{"code": "dup"})
	require.NoError(t, closer())

	cfg := abConfig()
	cfg.Version = 2
	_, _, err = edusiap.Open(path, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, edusiap.ErrInitialization))

	// the failed migration left the file as it was
	db = openDB(t, path, &edusiap.Config{Version: 1, Registry: loose, Seeders: []edusiap.Seeder{}})
	assert.Len(t, mustList(t, db, "B"), 2)
	err = db.View(context.Background(), func(tx *edusiap.Tx) error {
		assert.False(t, tx.HasCollection("A"))
		return nil
	})
	require.NoError(t, err)
}

func TestSchoolRegistry(t *testing.T) {
	r := edusiap.SchoolRegistry()

	assert.Len(t, r.Names(), 22)
	assert.Equal(t, edusiap.SchoolProfileCollection, r.Names()[0])

	users, ok := r.Lookup(edusiap.CredentialsCollection)
	require.True(t, ok)
	idx, ok := users.Index("username")
	require.True(t, ok)
	assert.True(t, idx.Unique)

	profile, ok := r.Lookup(edusiap.SchoolProfileCollection)
	require.True(t, ok)
	assert.False(t, profile.AutoIncrement)
}

func TestSchoolDatabase_Seeded(t *testing.T) {
	db := openDB(t, edusiap.InMemory, schoolConfig())
	ctx := context.Background()

	err := db.View(ctx, func(tx *edusiap.Tx) error {
		assert.Equal(t, edusiap.SchoolSchemaVersion, tx.Version())
		assert.Len(t, tx.Collections(), 22)
		return nil
	})
	require.NoError(t, err)

	profile, ok, err := db.Store().Get(ctx, edusiap.SchoolProfileCollection, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sekolah Impian Bangsa", profile.String("nama_sekolah"))

	users := mustList(t, db, edusiap.CredentialsCollection)
	require.Len(t, users, 1)
	assert.Equal(t, edusiap.DefaultAdminUsername, users[0].String("username"))
	assert.Equal(t, edusiap.DefaultAdminRole, users[0].String("role"))
	assert.NotEqual(t, edusiap.DefaultAdminPassword, users[0].String("password"))
}

func TestRegistry_Invalid(t *testing.T) {
	tt := []struct {
		name  string
		descs []edusiap.CollectionDescriptor
	}{
		{"empty name", []edusiap.CollectionDescriptor{{KeyPath: "id"}}},
		{"no key path", []edusiap.CollectionDescriptor{{Name: "A"}}},
		{"declared twice", []edusiap.CollectionDescriptor{{Name: "A", KeyPath: "id"}, {Name: "A", KeyPath: "id"}}},
		{"index declared twice", []edusiap.CollectionDescriptor{{
			Name:    "A",
			KeyPath: "id",
			Indexes: []edusiap.IndexDescriptor{{Name: "x", KeyPath: "x"}, {Name: "x", KeyPath: "y"}},
		}}},
		{"incomplete index", []edusiap.CollectionDescriptor{{
			Name:    "A",
			KeyPath: "id",
			Indexes: []edusiap.IndexDescriptor{{Name: "x"}},
		}}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := edusiap.NewRegistry(tc.descs...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, edusiap.ErrInvalidRegistry))
		})
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r := abRegistry()

	desc, ok := r.Lookup("B")
	require.True(t, ok)
	desc.Indexes[0].Unique = false

	again, _ := r.Lookup("B")
	assert.True(t, again.Indexes[0].Unique)
}

package edusiap_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/denismitr/edusiap"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// abRegistry declares two auto-keyed collections, the second one with a
// unique index on code.
func abRegistry() *edusiap.Registry {
	return edusiap.MustRegistry(
		edusiap.CollectionDescriptor{Name: "A", KeyPath: "id", AutoIncrement: true},
		edusiap.CollectionDescriptor{
			Name:          "B",
			KeyPath:       "id",
			AutoIncrement: true,
			Indexes:       []edusiap.IndexDescriptor{{Name: "code", KeyPath: "code", Unique: true}},
		},
	)
}

var seedA = edusiap.Seeder{
	Name: "default A",
	Seed: func(tx *edusiap.Tx, _ *edusiap.Config) (bool, error) {
		n, err := tx.Count("A")
		if err != nil || n > 0 {
			return false, err
		}

		if _, err := tx.Add("A", edusiap.M{"v": "default"}); err != nil {
			return false, err
		}

		return true, nil
	},
}

func abConfig(seeders ...edusiap.Seeder) *edusiap.Config {
	if seeders == nil {
		seeders = []edusiap.Seeder{}
	}

	return &edusiap.Config{
		Version:  1,
		Registry: abRegistry(),
		Seeders:  seeders,
	}
}

func schoolConfig() *edusiap.Config {
	return &edusiap.Config{PasswordHashCost: bcrypt.MinCost}
}

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "edusiap.db")
}

func openDB(t *testing.T, path string, cfg *edusiap.Config) *edusiap.DB {
	t.Helper()

	db, closer, err := edusiap.Open(path, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = closer()
	})

	return db
}

func mustAdd(t *testing.T, db *edusiap.DB, coll string, rec edusiap.M) edusiap.Key {
	t.Helper()

	k, err := db.Store().Add(context.Background(), coll, rec)
	require.NoError(t, err)

	return k
}

func mustList(t *testing.T, db *edusiap.DB, coll string) []edusiap.M {
	t.Helper()

	recs, err := db.Store().List(context.Background(), coll)
	require.NoError(t, err)

	return recs
}

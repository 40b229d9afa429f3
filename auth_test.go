package edusiap_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/denismitr/edusiap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	db := openDB(t, edusiap.InMemory, schoolConfig())
	ctx := context.Background()

	t.Run("default admin", func(t *testing.T) {
		acc, err := db.Authenticate(ctx, edusiap.DefaultAdminUsername, edusiap.DefaultAdminPassword)
		require.NoError(t, err)
		assert.Equal(t, edusiap.DefaultAdminRole, acc.String("role"))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := db.Authenticate(ctx, edusiap.DefaultAdminUsername, "salah")
		assert.True(t, errors.Is(err, edusiap.ErrInvalidCredentials))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := db.Authenticate(ctx, "siapa", "admin")
		assert.True(t, errors.Is(err, edusiap.ErrInvalidCredentials))
	})

	t.Run("plaintext account from an old backup", func(t *testing.T) {
		mustAdd(t, db, edusiap.CredentialsCollection, edusiap.M{"username": "guru", "password": "rahasia", "role": "Guru"})

		acc, err := db.Authenticate(ctx, "guru", "rahasia")
		require.NoError(t, err)
		assert.Equal(t, "Guru", acc.String("role"))

		_, err = db.Authenticate(ctx, "guru", "RAHASIA")
		assert.True(t, errors.Is(err, edusiap.ErrInvalidCredentials))
	})

	t.Run("hashed account", func(t *testing.T) {
		hash, err := edusiap.HashPassword("s3cret")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2"))

		mustAdd(t, db, edusiap.CredentialsCollection, edusiap.M{"username": "tu", "password": hash, "role": "TU"})

		_, err = db.Authenticate(ctx, "tu", "s3cret")
		require.NoError(t, err)
	})

	t.Run("usernames are unique", func(t *testing.T) {
		_, err := db.Store().Add(ctx, edusiap.CredentialsCollection, edusiap.M{"username": "admin", "password": "x"})
		assert.True(t, errors.Is(err, edusiap.ErrConstraintViolation))
	})
}

func TestSeedAdmin_KeepsChangedPassword(t *testing.T) {
	path := tempPath(t)
	ctx := context.Background()

	db, closer, err := edusiap.Open(path, schoolConfig())
	require.NoError(t, err)

	users := mustList(t, db, edusiap.CredentialsCollection)
	require.Len(t, users, 1)
	users[0]["password"] = "baru"
	_, err = db.Store().Update(ctx, edusiap.CredentialsCollection, users[0])
	require.NoError(t, err)
	require.NoError(t, closer())

	db = openDB(t, path, schoolConfig())

	_, err = db.Authenticate(ctx, edusiap.DefaultAdminUsername, "baru")
	require.NoError(t, err)
	assert.Len(t, mustList(t, db, edusiap.CredentialsCollection), 1)
}

func TestSeedAdmin_RenamedAdminStaysRenamed(t *testing.T) {
	path := tempPath(t)
	ctx := context.Background()

	db, closer, err := edusiap.Open(path, schoolConfig())
	require.NoError(t, err)

	users := mustList(t, db, edusiap.CredentialsCollection)
	require.Len(t, users, 1)
	users[0]["username"] = "kepala"
	_, err = db.Store().Update(ctx, edusiap.CredentialsCollection, users[0])
	require.NoError(t, err)
	require.NoError(t, closer())

	db = openDB(t, path, schoolConfig())

	users = mustList(t, db, edusiap.CredentialsCollection)
	require.Len(t, users, 1)
	assert.Equal(t, "kepala", users[0].String("username"))

	_, err = db.Authenticate(ctx, edusiap.DefaultAdminUsername, edusiap.DefaultAdminPassword)
	assert.True(t, errors.Is(err, edusiap.ErrInvalidCredentials))

	_, err = db.Authenticate(ctx, "kepala", edusiap.DefaultAdminPassword)
	require.NoError(t, err)
}

func TestSeedAdmin_NotRecreatedAfterRestore(t *testing.T) {
	path := tempPath(t)
	ctx := context.Background()

	db, closer, err := edusiap.Open(path, schoolConfig())
	require.NoError(t, err)

	require.NoError(t, db.Transfer().RestoreAll(ctx, edusiap.Snapshot{
		edusiap.CredentialsCollection: {{"id": 3, "username": "kepala", "password": "rahasia", "role": "Admin"}},
	}))
	require.NoError(t, closer())

	db = openDB(t, path, schoolConfig())

	_, err = db.Authenticate(ctx, edusiap.DefaultAdminUsername, edusiap.DefaultAdminPassword)
	assert.True(t, errors.Is(err, edusiap.ErrInvalidCredentials))

	// a plaintext secret from the backup still logs in
	_, err = db.Authenticate(ctx, "kepala", "rahasia")
	require.NoError(t, err)

	users := mustList(t, db, edusiap.CredentialsCollection)
	require.Len(t, users, 1)
	assert.Equal(t, "kepala", users[0].String("username"))

	// the school profile is the one default that comes back on every open
	profile := mustList(t, db, edusiap.SchoolProfileCollection)
	require.Len(t, profile, 1)
	assert.Equal(t, "Sekolah Impian Bangsa", profile[0].String("nama_sekolah"))
}

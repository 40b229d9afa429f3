package edusiap

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashPassword returns the bcrypt hash to store in an account's password field.
func HashPassword(plain string) (string, error) {
	return hashPassword(plain, bcrypt.DefaultCost)
}

func hashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", errors.Wrap(err, "could not hash password")
	}
	return string(b), nil
}

func isBcryptHash(s string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// checkPassword accepts bcrypt hashes and, for accounts restored from old
// backups, plaintext secrets.
func checkPassword(stored, plain string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

func findAccount(tx *Tx, username string) (M, error) {
	found, err := tx.FindByIndex(CredentialsCollection, "username", username)
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, nil
	}

	return found[0], nil
}

// Authenticate looks the account up by username and checks its password.
func (db *DB) Authenticate(ctx context.Context, username, password string) (M, error) {
	var account M

	err := db.View(ctx, func(tx *Tx) error {
		acc, err := findAccount(tx, username)
		if err != nil {
			return err
		}

		account = acc
		return nil
	})

	if err != nil {
		return nil, err
	}

	if account == nil || !checkPassword(account.String("password"), password) {
		return nil, errors.Wrapf(ErrInvalidCredentials, "user %s", username)
	}

	return account, nil
}

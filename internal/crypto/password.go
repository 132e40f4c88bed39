package crypto

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = bcrypt.DefaultCost

var decoyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("schoolhub-decoy"), passwordCost)
	if err != nil {
		panic(err)
	}
	return hash
})

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword returns nil when password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// RejectUnknownAccount spends one bcrypt comparison at the account cost so
// a login for a missing email takes as long as a wrong password. It always
// returns bcrypt.ErrMismatchedHashAndPassword.
func RejectUnknownAccount(password string) error {
	if err := bcrypt.CompareHashAndPassword(decoyHash(), []byte(password)); err != nil {
		return err
	}
	return bcrypt.ErrMismatchedHashAndPassword
}

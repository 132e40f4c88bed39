package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", hash)

	cases := []struct {
		password string
		ok       bool
	}{
		{"correct horse", true},
		{"correct horse ", false},
		{"", false},
	}
	for _, tc := range cases {
		err := VerifyPassword(hash, tc.password)
		if tc.ok {
			require.NoError(t, err, tc.password)
		} else {
			require.ErrorIs(t, err, bcrypt.ErrMismatchedHashAndPassword, tc.password)
		}
	}
}

func TestRejectUnknownAccount(t *testing.T) {
	require.ErrorIs(t, RejectUnknownAccount("anything"), bcrypt.ErrMismatchedHashAndPassword)
	require.ErrorIs(t, RejectUnknownAccount("schoolhub-decoy"), bcrypt.ErrMismatchedHashAndPassword)

	cost, err := bcrypt.Cost(decoyHash())
	require.NoError(t, err)
	require.Equal(t, passwordCost, cost)
}

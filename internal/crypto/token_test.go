package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomTokenDigest(t *testing.T) {
	a, err := RandomToken()
	require.NoError(t, err)
	b, err := RandomToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, tokenEncoding.EncodedLen(tokenBytes))

	require.Equal(t, TokenDigest(a), TokenDigest(a))
	require.NotEqual(t, TokenDigest(a), TokenDigest(b))
	require.NotEqual(t, a, TokenDigest(a))
}

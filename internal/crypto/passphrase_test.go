package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyPassphrase(t *testing.T) {
	digest, err := HashPassphrase("open sesame")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(digest, "$argon2id$"))
	assert.True(t, VerifyPassphrase(digest, "open sesame"))
	assert.False(t, VerifyPassphrase(digest, "open Sesame"))
	assert.False(t, VerifyPassphrase(digest, ""))
}

func TestHashPassphraseSaltsPerCall(t *testing.T) {
	first, err := HashPassphrase("x")
	require.NoError(t, err)
	second, err := HashPassphrase("x")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassphrase(first, "x"))
	assert.True(t, VerifyPassphrase(second, "x"))
}

func TestVerifyPassphraseMalformedDigest(t *testing.T) {
	cases := []string{
		"",
		"plainhash",
		"$argon2i$v=19$m=1024,t=4,p=1$YWJj$YWJj",
		"$argon2id$v=19$m=1024,t=4,p=1$not base64$YWJj",
		"$argon2id$v=18$m=1024,t=4,p=1$YWJj$YWJj",
	}

	for _, digest := range cases {
		assert.False(t, VerifyPassphrase(digest, "x"), "digest %q", digest)
	}
}

package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello"),
		[]byte(""),
		{0x00, 0xff, 0x10, 0x80},
		bytes.Repeat([]byte("x"), 64*1024),
	}

	for _, payload := range payloads {
		password := GeneratePassword()

		envelope, err := Seal(payload, password)
		require.NoError(t, err)

		opened, err := Open(envelope, password)
		require.NoError(t, err)
		assert.Equal(t, payload, opened)
	}
}

func TestSealRandomizesEnvelope(t *testing.T) {
	password := GeneratePassword()

	first, err := Seal([]byte("same payload"), password)
	require.NoError(t, err)
	second, err := Seal([]byte("same payload"), password)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestOpenWrongPassword(t *testing.T) {
	envelope, err := Seal([]byte("payload"), "correct password")
	require.NoError(t, err)

	_, err = Open(envelope, "wrong password")
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestOpenMalformedEnvelope(t *testing.T) {
	cases := []string{
		"",
		"onlyonepart",
		"a:b:c",
		"a:b:c:d:e",
		"not base64!:YWJj:YWJj:YWJj",
	}

	for _, envelope := range cases {
		_, err := Open(envelope, "password")
		assert.ErrorIs(t, err, ErrDecryption, "envelope %q", envelope)
	}
}

func TestOpenTamperedEnvelope(t *testing.T) {
	payload := make([]byte, 256)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	password := GeneratePassword()
	envelope, err := Seal(payload, password)
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 4)

	// Flip one byte in the ciphertext and tag segments in turn; either must
	// make Open refuse.
	for _, idx := range []int{2, 3} {
		raw, err := base64.StdEncoding.DecodeString(parts[idx])
		require.NoError(t, err)

		for pos := 0; pos < len(raw); pos += 7 {
			mangled := make([]byte, len(raw))
			copy(mangled, raw)
			mangled[pos] ^= 0x01

			tampered := make([]string, 4)
			copy(tampered, parts)
			tampered[idx] = base64.StdEncoding.EncodeToString(mangled)

			_, err := Open(strings.Join(tampered, ":"), password)
			assert.ErrorIs(t, err, ErrDecryption, "segment %d byte %d", idx, pos)
		}
	}
}

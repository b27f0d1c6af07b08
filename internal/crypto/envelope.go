package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrDecryption covers everything that keeps an envelope from opening:
// malformed encoding, wrong password, flipped bits. Callers get no more
// detail than that.
var ErrDecryption = errors.New("decryption failed")

const (
	saltSize = 16
	ivSize   = 16 // GCM with explicit 16-byte IV, matching the stored format
	tagSize  = 16
	keySize  = 32

	scryptN = 16384
	scryptR = 8
	scryptP = 1

	envelopeSep   = ":"
	envelopeParts = 4
)

// Seal encrypts payload under a key derived from password and returns the
// envelope: base64(salt):base64(iv):base64(ciphertext):base64(tag). The salt
// and IV are fresh random values per call, so sealing the same payload twice
// yields unrelated envelopes.
func Seal(payload []byte, password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt generation failed: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("iv generation failed: %w", err)
	}

	gcm, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, payload, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	parts := []string{
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}
	return strings.Join(parts, envelopeSep), nil
}

// Open decrypts an envelope produced by Seal. Any structural defect or
// authentication-tag mismatch yields ErrDecryption; corrupted plaintext is
// never returned.
func Open(envelope, password string) ([]byte, error) {
	parts := strings.Split(envelope, envelopeSep)
	if len(parts) != envelopeParts {
		return nil, ErrDecryption
	}

	decoded := make([][]byte, envelopeParts)
	for i, part := range parts {
		raw, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return nil, ErrDecryption
		}
		decoded[i] = raw
	}

	salt, iv, ciphertext, tag := decoded[0], decoded[1], decoded[2], decoded[3]
	if len(salt) != saltSize || len(iv) != ivSize || len(tag) != tagSize {
		return nil, ErrDecryption
	}

	gcm, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}
	return gcm, nil
}

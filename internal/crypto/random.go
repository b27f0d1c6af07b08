package crypto

import (
	"crypto/rand"
)

const (
	// 62-character alphabet: 16 chars ≈ 95 bits for ids, 32 chars ≈ 190 bits
	// for passwords.
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	IDLength       = 16
	PasswordLength = 32
)

// GenerateID returns a fresh secret id: IDLength alphanumeric characters.
func GenerateID() string {
	return randomToken(IDLength)
}

// GeneratePassword returns a fresh secret password: PasswordLength
// alphanumeric characters. Returned to the creator once, never stored.
func GeneratePassword() string {
	return randomToken(PasswordLength)
}

// randomToken draws unbiased characters from the alphabet via rejection
// sampling. 248 is the largest multiple of 62 below 256, so accepted bytes
// map uniformly.
func randomToken(length int) string {
	const limit = 248

	token := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(token) < length {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == length {
				break
			}
		}
	}
	return string(token)
}

package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	keyChars = "0123456789abcdef"

	// KeyLength is the length of a bearer token key.
	KeyLength = 40
)

var ErrKeyLength = errors.New("key length must be positive")

// GenerateKey returns a bearer token key of KeyLength lowercase hex characters.
func GenerateKey() (string, error) {
	return generate(keyChars, KeyLength)
}

// generate builds a string of length n from charset using crypto/rand.
func generate(charset string, n int) (string, error) {
	if n <= 0 {
		return "", ErrKeyLength
	}

	result := make([]byte, n)
	for i := range result {
		ch, err := randChar(charset)
		if err != nil {
			return "", err
		}
		result[i] = ch
	}

	return string(result), nil
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}

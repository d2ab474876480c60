// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const UpperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomString draws length characters from charset using crypto/rand.
func RandomString(charset string, length int) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

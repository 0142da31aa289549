package token

import (
	"crypto/rand"
	"math/big"
)

// secretAlphabet covers letters, digits, and the punctuation that is safe in
// a URL path segment without escaping. 66 symbols at 128 characters gives
// well over 700 bits of entropy.
const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

const (
	secretLength = 128
	cookieLength = 64
)

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[idx.Int64()]
	}
	return string(b), nil
}

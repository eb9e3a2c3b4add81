package auth

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	KeyPrefix     = "gopt_"
	keyBodyLength = 23
	keyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var keyPattern = regexp.MustCompile(`^gopt_[A-Za-z0-9]{23}$`)

// GenerateAPIKey returns a new random key in the gopt_ format.
func GenerateAPIKey() (string, error) {
	var b strings.Builder
	b.Grow(len(KeyPrefix) + keyBodyLength)
	b.WriteString(KeyPrefix)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < keyBodyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidFormat reports whether s looks like a key GenerateAPIKey could produce.
func ValidFormat(s string) bool {
	return keyPattern.MatchString(s)
}

// ExtractCredential picks the key from an "Authorization: Bearer <key>" header,
// falling back to the api_key field of the request body.
func ExtractCredential(authorization, bodyKey string) string {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		if k := strings.TrimSpace(authorization[7:]); k != "" {
			return k
		}
	}
	return strings.TrimSpace(bodyKey)
}

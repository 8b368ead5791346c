package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	queryIDPrefix = "q_"
	chunkIDPrefix = "ch_"
)

var (
	queryIDPattern = regexp.MustCompile(`^q_[a-zA-Z0-9]{24}$`)
	chunkIDPattern = regexp.MustCompile(`^ch_[a-zA-Z0-9]{24}$`)
)

// NewQueryID generates a new query ID with the "q_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewQueryID() string {
	return queryIDPrefix + randomAlphanumeric(idLength)
}

// NewChunkID generates a new chunk ID with the "ch_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewChunkID() string {
	return chunkIDPrefix + randomAlphanumeric(idLength)
}

// ValidateQueryID checks whether the given string is a valid query ID
// (matches "q_" + 24 alphanumeric characters).
func ValidateQueryID(id string) bool {
	return queryIDPattern.MatchString(id)
}

// ValidateChunkID checks whether the given string is a valid chunk ID
// (matches "ch_" + 24 alphanumeric characters).
func ValidateChunkID(id string) bool {
	return chunkIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}

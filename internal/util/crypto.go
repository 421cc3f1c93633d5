package util

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

// GenerateSessionID draws model.SessionIDLength characters uniformly from
// model.SessionIDAlphabet.
func GenerateSessionID() (string, error) {
	return randomString(model.SessionIDAlphabet, model.SessionIDLength)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// MaskSessionID keeps enough of an id to correlate log lines without
// printing the whole bearer value.
func MaskSessionID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:4] + "********"
}

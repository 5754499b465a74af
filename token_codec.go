package emailauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// authTokenBytes gives 256 bits of entropy per token.
const authTokenBytes = 32

// HashAuthToken returns the hex encoded SHA-256 digest of a raw token. This
// digest is what lands in the store; the raw token only ever travels in the
// signin link.
func HashAuthToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewTokenCodec returns the default codec: 32 random bytes, hex encoded,
// hashed with SHA-256 for storage.
func NewTokenCodec() TokenCodec {
	return sha256Codec{}
}

type sha256Codec struct{}

func (sha256Codec) Generate() (string, string, error) {
	buf := make([]byte, authTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate auth token").
			WithCode(goerrors.CodeInternal)
	}
	raw := hex.EncodeToString(buf)
	return raw, HashAuthToken(raw), nil
}

// Matches recomputes the digest and compares in constant time.
func (sha256Codec) Matches(raw, storedHash string) bool {
	computed := HashAuthToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Seeds identify a replayable breeding sequence. Each nonce within the
// sequence yields one entropy block.
type Seeds struct {
	Server string `json:"server"` // ASCII; do NOT hex-decode
	Client string `json:"client"`
}

// Scheme names the hash construction used to expand seeds into entropy.
type Scheme string

const (
	// SchemeHMAC is HMAC-SHA256 keyed by the server seed over
	// "client:nonce:round".
	SchemeHMAC Scheme = "hmac-sha256"
	// SchemeBlake2b is BLAKE2b-256 over "server:client:nonce:round", the
	// hash the on-chain runtime used for its random hashes.
	SchemeBlake2b Scheme = "blake2b"
)

// ErrUnknownScheme is returned for a scheme name that is not supported.
var ErrUnknownScheme = errors.New("unknown entropy scheme")

// ParseScheme validates a scheme name. An empty name selects SchemeHMAC.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "", SchemeHMAC:
		return SchemeHMAC, nil
	case SchemeBlake2b:
		return SchemeBlake2b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// HashSeed returns the hex SHA-256 of a seed. Logs and stored runs only
// ever carry this hash, never the seed itself.
func HashSeed(seed string) string {
	if seed == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])
}

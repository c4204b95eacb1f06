// Package cryptoutils provides the small cryptographic helpers shared by
// the approval workflow: share fingerprinting, secret wiping, and nonce
// generation.
package cryptoutils

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// ShareFingerprint derives a hex-encoded fingerprint of a secret share,
// bound to the signer it was issued to. The fingerprint is stored on the
// identity in place of the share itself, which is never persisted. Argon2id
// makes offline guessing of low-entropy material expensive.
func ShareFingerprint(share []byte, signerID string) string {
	salt := append([]byte("share-fingerprint-"), []byte(signerID)...)

	// Parameters: time=1, memory=64*1024, threads=4, keyLen=32
	sum := argon2.IDKey(share, salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(sum)
}

// WipeBytes zeroes secret material in place once it is no longer needed.
func WipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// NewNonce returns a unique, monotonic-enough nonce for replay protection.
// The nanosecond prefix keeps nonces roughly ordered; the uuid suffix keeps
// them unique even within a single nanosecond.
func NewNonce() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}

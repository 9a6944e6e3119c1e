// Package hashchain provides the hashing primitives shared by every
// integrity mechanism in the bridge: content digests, Aadhaar
// pseudonymization, and audit-chain link hashing.
//
// SHA-256 is the only algorithm used. Changing it, or changing any of the
// canonical separators below, would invalidate every previously issued
// anchor and audit entry, so treat this package as frozen wire format.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// GenesisHash is the canonical well-known hash that every audit stream
// chains from. It is a constant rather than a computed value so that the
// first entry of any stream can be validated without prior state.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// PseudonymPrefix is prepended to every pseudonymized identifier so stored
// values are self-describing.
const PseudonymPrefix = "sha256:"

// aadhaarLength is the fixed length of an Aadhaar number.
const aadhaarLength = 12

// minSaltLength is the minimum accepted pseudonymization salt length.
// Shorter salts make dictionary attacks on the 12-digit space practical.
const minSaltLength = 32

var (
	// ErrInvalidFormat is returned when the secret is not exactly 12 digits.
	ErrInvalidFormat = errors.New("hashchain: secret must be exactly 12 digits")

	// ErrWeakSalt is returned when the salt is shorter than 32 characters.
	ErrWeakSalt = errors.New("hashchain: salt must be at least 32 characters")
)

// Digest returns the lowercase hex SHA-256 of input.
func Digest(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

// Pseudonymize one-way hashes a 12-digit identifier (an Aadhaar number)
// with the process-wide salt and returns "sha256:<hex>". The raw identifier
// is never stored anywhere in the system; only this value is.
//
// The salt is loaded once at startup and MUST NEVER be rotated: every
// previously stored pseudonym is keyed on it, and rotation would orphan all
// of them with no recovery path. This is a permanent operational constraint,
// not a bug.
func Pseudonymize(secret, salt string) (string, error) {
	if len(secret) != aadhaarLength {
		return "", ErrInvalidFormat
	}
	for _, c := range secret {
		if c < '0' || c > '9' {
			return "", ErrInvalidFormat
		}
	}
	if len(salt) < minSaltLength {
		return "", ErrWeakSalt
	}
	return PseudonymPrefix + Digest([]byte(salt+"|"+secret)), nil
}

// ChainLink computes the hash of an audit-chain entry from its
// predecessor's hash and the entry's canonical payload:
//
//	Digest(previousHash || "|" || payload)
//
// Recomputing ChainLink from stored values must reproduce the stored entry
// hash exactly; any tampered byte in either input breaks every subsequent
// link in the chain.
func ChainLink(previousHash string, payload []byte) string {
	buf := make([]byte, 0, len(previousHash)+1+len(payload))
	buf = append(buf, previousHash...)
	buf = append(buf, '|')
	buf = append(buf, payload...)
	return Digest(buf)
}

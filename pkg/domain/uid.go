package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// NewUID derives a 32-byte product identifier from the minting caller, a
// per-caller monotonic nonce, and the mint time. The nonce makes repeated
// calls by the same identity yield distinct values; the caller component
// scopes the sequence so concurrent identities never tread on each other.
func NewUID(caller Identity, nonce uint64, at time.Time) UID {
	h := sha256.New()
	h.Write([]byte(caller))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], nonce)
	binary.BigEndian.PutUint64(buf[8:], uint64(at.UnixNano()))
	h.Write(buf[:])
	return UID(hex.EncodeToString(h.Sum(nil)))
}

// HashBytes returns the ledger digest of an information payload.
func HashBytes(payload []byte) Hash {
	sum := sha256.Sum256(payload)
	return Hash(hex.EncodeToString(sum[:]))
}

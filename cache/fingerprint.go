package cache

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a collision-resistant digest over an input's full bytes. It
// is the content half of every cache key: identical bytes always produce the
// same fingerprint.
type Fingerprint [blake2b.Size256]byte

// FingerprintBytes hashes data with BLAKE2b-256.
func FingerprintBytes(data []byte) Fingerprint {
	return Fingerprint(blake2b.Sum256(data))
}

// Hex returns the lowercase hex encoding of the fingerprint.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// Key combines a fingerprint and a recognition mode into the cache key. The
// same string doubles as the persistent-tier file name.
func Key(fp Fingerprint, mode string) string {
	return fp.Hex() + "_" + mode
}

// Package primitives implements the content-addressed building blocks
// shared by every other dagchaind package: hashes, addresses, signatures
// and the canonical RLP-style wire encoding. The fixed-size Hash type
// mirrors the teacher's externalapi.DomainHash (Clone/Equal/String over a
// plain byte array, not a slice, so values are safe to use as map keys).
package primitives

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 32

// Hash is a 32-byte content-addressed identifier.
type Hash [HashSize]byte

// ZeroHash is the all-zero Hash, used as the genesis selected-parent and as
// the unpopulated artifact_root value.
var ZeroHash = Hash{}

// Keccak256 hashes the concatenation of data with keccak-256.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Less provides a deterministic byte-wise total order over hashes, used to
// break ties in GhostDAG selected-parent/mergeset ordering per spec §4.3.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// HashFromSlice copies b into a Hash; b must be exactly HashSize bytes.
func HashFromSlice(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// HashFromHex parses a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	h, ok := HashFromSlice(b)
	if !ok {
		return Hash{}, hex.ErrLength
	}
	return h, nil
}

// SortHashes returns a byte-wise ascending sorted copy of hashes.
func SortHashes(hashes []Hash) []Hash {
	out := make([]Hash, len(hashes))
	copy(out, hashes)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// HashSet is a small set of hashes with the set operations GhostDAG needs:
// union, membership, and the per-block anticone/ancestor bookkeeping.
type HashSet map[Hash]struct{}

// NewHashSet builds a HashSet from the given hashes.
func NewHashSet(hashes ...Hash) HashSet {
	s := make(HashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Add inserts h into the set.
func (s HashSet) Add(h Hash) { s[h] = struct{}{} }

// Contains reports whether h is a member of the set.
func (s HashSet) Contains(h Hash) bool {
	_, ok := s[h]
	return ok
}

// Slice returns the set's members in byte-wise ascending order.
func (s HashSet) Slice() []Hash {
	out := make([]Hash, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	return SortHashes(out)
}

package storage

// CurrentValueVersion is the version byte Versioned prefixes onto a stored
// value so the format can evolve without breaking readers of older data.
// Only blockstore's block records are written through Versioned; the other
// stores (accounts, storage, receipts, relations, GHOSTDAG data, metadata)
// write their values without a version byte.
const CurrentValueVersion byte = 1

// Versioned prefixes payload with the current value version byte.
func Versioned(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, CurrentValueVersion)
	return append(out, payload...)
}

// Unversion strips and returns the leading version byte and the payload
// that follows it.
func Unversion(raw []byte) (version byte, payload []byte, ok bool) {
	if len(raw) == 0 {
		return 0, nil, false
	}
	return raw[0], raw[1:], true
}

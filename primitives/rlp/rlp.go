// Package rlp implements a small, hand-written recursive-length-prefix
// style codec, grounded on the teacher's own hand-rolled binary encoders
// in wire/ and domainmessage/ rather than on a reflection-driven library:
// every encodable type implements Encode/Decode explicitly and dispatch on
// a leading type tag, the same "explicit dispatch on the first byte"
// idiom the design notes call for when replacing reflective decoding.
//
// The wire shape is deliberately simple: a value is either a byte string
// (tag 0x00, varint length, raw bytes) or a list (tag 0x01, varint count,
// varint byte length, concatenated encoded items). This is enough to deterministically encode
// the fixed-shape structs (Transaction, Block header, Account) this
// module needs; it is not a general-purpose RLP implementation.
package rlp

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	tagString byte = 0x00
	tagList   byte = 0x01
)

// Encoder writes an append-only byte stream.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded stream so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteBytes appends a byte-string item.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, tagString)
	e.buf = appendUvarint(e.buf, uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteUint64 appends a uint64 as an 8-byte big-endian byte-string item.
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.WriteBytes(b[:])
}

// WriteList appends n sub-items worth of bytes as a list item. children
// must already be individually-encoded item streams (e.g. produced by a
// nested Encoder's Bytes()).
func (e *Encoder) WriteList(n int, children []byte) {
	e.buf = append(e.buf, tagList)
	e.buf = appendUvarint(e.buf, uint64(n))
	e.buf = appendUvarint(e.buf, uint64(len(children)))
	e.buf = append(e.buf, children...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Decoder reads items off a byte stream produced by Encoder.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for reading.
func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Remaining reports whether there is more data to decode.
func (d *Decoder) Remaining() bool { return d.pos < len(d.buf) }

func (d *Decoder) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, errors.New("rlp: malformed varint")
	}
	d.pos += n
	return v, nil
}

// ReadBytes reads the next byte-string item.
func (d *Decoder) ReadBytes() ([]byte, error) {
	if d.pos >= len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	tag := d.buf[d.pos]
	if tag != tagString {
		return nil, errors.Errorf("rlp: expected string tag, got %x", tag)
	}
	d.pos++
	length, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	if d.pos+int(length) > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	out := d.buf[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return out, nil
}

// ReadUint64 reads an 8-byte big-endian byte-string item as a uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, errors.Errorf("rlp: expected 8-byte uint64, got %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadList reads the next list item, returning a Decoder scoped to its
// contents and the declared item count.
func (d *Decoder) ReadList() (*Decoder, int, error) {
	if d.pos >= len(d.buf) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	tag := d.buf[d.pos]
	if tag != tagList {
		return nil, 0, errors.Errorf("rlp: expected list tag, got %x", tag)
	}
	d.pos++
	count, err := d.readUvarint()
	if err != nil {
		return nil, 0, err
	}
	length, err := d.readUvarint()
	if err != nil {
		return nil, 0, err
	}
	if d.pos+int(length) > len(d.buf) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	sub := &Decoder{buf: d.buf[d.pos : d.pos+int(length)]}
	d.pos += int(length)
	return sub, int(count), nil
}

// Package layout reads and writes fixed-offset little-endian records.
//
// A record starts with an 8-byte discriminator followed by its fields in
// declaration order. Writers never fail; readers record the first error and
// turn every later read into a no-op so decoders can check once at the end.
package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xraph/parkledger/address"
)

// DiscriminatorSize is the length of the record tag header.
const DiscriminatorSize = 8

// Discriminator is the tag that identifies a record or instruction type.
type Discriminator [DiscriminatorSize]byte

// Errors reported by Reader.
var (
	ErrShortBuffer   = errors.New("layout: short buffer")
	ErrTrailingBytes = errors.New("layout: trailing bytes")
	ErrBadTag        = errors.New("layout: discriminator mismatch")
	ErrBadBool       = errors.New("layout: invalid bool")
)

// NewDiscriminator returns sha256(namespace + ":" + name)[:8].
func NewDiscriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// Writer appends fixed-width fields to a buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Discriminator(d Discriminator) { w.buf = append(w.buf, d[:]...) }

func (w *Writer) Address(a address.Address) { w.buf = append(w.buf, a[:]...) }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// Fixed writes b into a zero-padded field of exactly n bytes, truncating
// anything longer.
func (w *Writer) Fixed(b []byte, n int) {
	field := make([]byte, n)
	copy(field, b)
	w.buf = append(w.buf, field...)
}

// String writes a u32 length prefix followed by the bytes of s.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Reader consumes fixed-width fields from a buffer.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

// Finish returns the first decoding error, or ErrTrailingBytes when input remains.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(r.buf)-r.off)
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Expect consumes a discriminator and fails unless it equals d.
func (r *Reader) Expect(d Discriminator) {
	got := r.Discriminator()
	if r.err == nil && got != d {
		r.err = ErrBadTag
	}
}

func (r *Reader) Discriminator() Discriminator {
	var d Discriminator
	copy(d[:], r.take(DiscriminatorSize))
	return d
}

func (r *Reader) Address() address.Address {
	var a address.Address
	copy(a[:], r.take(address.Size))
	return a
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	v := r.U8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: %d", ErrBadBool, v)
	}
	return v == 1
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) I64() int64 { return int64(r.U64()) }

// Fixed reads an n-byte field.
func (r *Reader) Fixed(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// String reads a u32 length-prefixed string.
func (r *Reader) String() string {
	n := r.U32()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(len(r.buf)-r.off) {
		r.err = fmt.Errorf("%w: string of %d bytes at offset %d", ErrShortBuffer, n, r.off)
		return ""
	}
	return string(r.take(int(n)))
}

// TrimZero returns b without trailing zero padding.
func TrimZero(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

// Package packing provides a growable binary buffer with fixed-width, big-endian
// pack/unpack primitives used by the checkpoint codec. Strings are encoded as a
// uint32 length prefix followed by the raw bytes; absent strings are encoded as
// a zero length.
package packing

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
)

// Buffer is a byte buffer supporting sequential packing and unpacking of
// fixed-width integers, timestamps and length-prefixed strings.
// Packing appends to the buffer; unpacking consumes from the current offset.
type Buffer struct {
	data []byte
	off  int
}

// NewBuffer creates an empty Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// FromBytes creates a Buffer that unpacks from the given byte slice.
// The slice is not copied; callers must not mutate it while unpacking.
func FromBytes(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the packed contents of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the total number of bytes held by the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Offset returns the current offset. For a buffer being packed this is the
// write position; for a buffer being unpacked it is the read position.
func (b *Buffer) Offset() int {
	if b.off > 0 {
		return b.off
	}
	return len(b.data)
}

// Remaining returns the number of bytes left to unpack.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.off
}

// Pack16 appends a big-endian uint16.
func (b *Buffer) Pack16(v uint16) {
	b.data = binary.BigEndian.AppendUint16(b.data, v)
}

// Pack32 appends a big-endian uint32.
func (b *Buffer) Pack32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

// Pack64 appends a big-endian uint64.
func (b *Buffer) Pack64(v uint64) {
	b.data = binary.BigEndian.AppendUint64(b.data, v)
}

// PackTime appends a timestamp as a big-endian int64 of Unix seconds.
// The zero time is encoded as 0.
func (b *Buffer) PackTime(t time.Time) {
	var secs int64
	if !t.IsZero() {
		secs = t.Unix()
	}
	b.data = binary.BigEndian.AppendUint64(b.data, uint64(secs))
}

// PackStr appends a string as a uint32 length prefix followed by the raw bytes.
// An empty string is encoded as a bare zero length.
func (b *Buffer) PackStr(s string) {
	b.Pack32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// SetUint32At backpatches a previously packed uint32 at the given byte offset.
// It panics if the offset does not leave room for four bytes; the caller owns
// the placeholder position.
func (b *Buffer) SetUint32At(offset int, v uint32) {
	if offset < 0 || offset+4 > len(b.data) {
		panic(fmt.Sprintf("packing: backpatch offset %d out of range (len %d)", offset, len(b.data)))
	}
	binary.BigEndian.PutUint32(b.data[offset:], v)
}

// Unpack16 consumes and returns a big-endian uint16.
func (b *Buffer) Unpack16() (uint16, error) {
	if b.Remaining() < 2 {
		return 0, fmt.Errorf("unpack uint16 at offset %d: %w", b.off, exception.ErrTruncated)
	}
	v := binary.BigEndian.Uint16(b.data[b.off:])
	b.off += 2
	return v, nil
}

// Unpack32 consumes and returns a big-endian uint32.
func (b *Buffer) Unpack32() (uint32, error) {
	if b.Remaining() < 4 {
		return 0, fmt.Errorf("unpack uint32 at offset %d: %w", b.off, exception.ErrTruncated)
	}
	v := binary.BigEndian.Uint32(b.data[b.off:])
	b.off += 4
	return v, nil
}

// Unpack64 consumes and returns a big-endian uint64.
func (b *Buffer) Unpack64() (uint64, error) {
	if b.Remaining() < 8 {
		return 0, fmt.Errorf("unpack uint64 at offset %d: %w", b.off, exception.ErrTruncated)
	}
	v := binary.BigEndian.Uint64(b.data[b.off:])
	b.off += 8
	return v, nil
}

// UnpackTime consumes an int64 of Unix seconds and returns it as a time.Time.
// A packed zero yields the zero time.
func (b *Buffer) UnpackTime() (time.Time, error) {
	raw, err := b.Unpack64()
	if err != nil {
		return time.Time{}, fmt.Errorf("unpack timestamp: %w", err)
	}
	secs := int64(raw)
	if secs == 0 {
		return time.Time{}, nil
	}
	return time.Unix(secs, 0).UTC(), nil
}

// UnpackStr consumes a uint32 length prefix and that many bytes, returning them
// as a string. A declared length larger than the remaining data is a truncation.
func (b *Buffer) UnpackStr() (string, error) {
	n, err := b.Unpack32()
	if err != nil {
		return "", fmt.Errorf("unpack string length: %w", err)
	}
	if int(n) > b.Remaining() {
		return "", fmt.Errorf("unpack string of %d bytes at offset %d: %w", n, b.off, exception.ErrTruncated)
	}
	s := string(b.data[b.off : b.off+int(n)])
	b.off += int(n)
	return s, nil
}

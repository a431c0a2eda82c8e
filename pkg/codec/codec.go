// Package codec measures and serialises the values stored in tree nodes.
//
// A Converter is the byte-budget contract of the tree: every entry placed in
// a node is measured with Size, and nodes are persisted with Write/Read.
package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
)

// Converter writes, reads and measures values of type T.
type Converter[T any] interface {
	Write(w io.Writer, v T) error
	Read(r io.Reader) (T, error)
	// Size returns the exact number of bytes Write produces for v.
	Size(v T) int
}

// ErrTooLarge is returned when a length prefix exceeds MaxLength.
var ErrTooLarge = errors.New("codec: value too large")

// MaxLength bounds length-prefixed payloads read back from storage.
const MaxLength = 64 << 20

// Int64 encodes int64 values as 8 big endian bytes.
type Int64 struct{}

func (Int64) Write(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func (Int64) Read(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func (Int64) Size(int64) int { return 8 }

// Bytes encodes byte slices with a uvarint length prefix.
type Bytes struct{}

func (Bytes) Write(w io.Writer, v []byte) error {
	if err := writeUvarint(w, uint64(len(v))); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func (Bytes) Read(r io.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > MaxLength {
		return nil, errors.Wrapf(ErrTooLarge, "length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (Bytes) Size(v []byte) int { return UvarintSize(uint64(len(v))) + len(v) }

// String encodes strings like Bytes.
type String struct{}

func (String) Write(w io.Writer, v string) error {
	if err := writeUvarint(w, uint64(len(v))); err != nil {
		return err
	}
	_, err := io.WriteString(w, v)
	return err
}

func (String) Read(r io.Reader) (string, error) {
	b, err := Bytes{}.Read(r)
	return string(b), err
}

func (String) Size(v string) int { return UvarintSize(uint64(len(v))) + len(v) }

// Record encodes common.Record as an 8 byte key followed by a length-prefixed value.
type Record struct{}

func (Record) Write(w io.Writer, v common.Record) error {
	if err := (Int64{}).Write(w, int64(v.Key)); err != nil {
		return err
	}
	return Bytes{}.Write(w, v.Value)
}

func (Record) Read(r io.Reader) (common.Record, error) {
	k, err := Int64{}.Read(r)
	if err != nil {
		return common.Record{}, err
	}
	v, err := Bytes{}.Read(r)
	if err != nil {
		return common.Record{}, err
	}
	return common.Record{Key: common.KeyType(k), Value: v}, nil
}

func (Record) Size(v common.Record) int { return 8 + Bytes{}.Size(v.Value) }

// UvarintSize returns the encoded length of x as an unsigned varint.
func UvarintSize(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

func writeUvarint(w io.Writer, x uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], x)
	_, err := w.Write(buf[:n])
	return err
}

func readUvarint(r io.Reader) (uint64, error) {
	if br, ok := r.(io.ByteReader); ok {
		return binary.ReadUvarint(br)
	}
	return binary.ReadUvarint(&byteReader{r: r})
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// Marshal writes v into a fresh byte slice.
func Marshal[T any](c Converter[T], v T) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.Size(v)))
	if err := c.Write(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal reads a single value from data.
func Unmarshal[T any](c Converter[T], data []byte) (T, error) {
	return c.Read(bytes.NewReader(data))
}

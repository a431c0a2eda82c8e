// Package run stores sorted runs of values in temporary files for external
// sorting.
//
// Layout:
//
//	record: [CRC32 4B] [Len 4B] [Payload NB]
//	footer: [Count 8B] [Magic 8B]
package run

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/codec"
)

const (
	MagicNumber = 0x5642545245455255
	HeaderSize  = 4 + 4
	FooterSize  = 8 + 8
)

var (
	ErrCorrupted = errors.New("run: corrupted record")
	ErrCRC       = errors.New("run: crc mismatch")
	ErrBadMagic  = errors.New("run: invalid magic number")
	ErrTruncated = errors.New("run: file too small")
)

// Writer appends values to a run file.
type Writer[T any] struct {
	file    *os.File
	buf     *bufio.Writer
	conv    codec.Converter[T]
	scratch bytes.Buffer
	count   int64
}

// Create creates a run file in dir.
func Create[T any](dir string, conv codec.Converter[T]) (*Writer[T], error) {
	f, err := os.CreateTemp(dir, "run-*.run")
	if err != nil {
		return nil, err
	}
	return &Writer[T]{
		file: f,
		buf:  bufio.NewWriter(f),
		conv: conv,
	}, nil
}

// Name returns the path of the run file.
func (w *Writer[T]) Name() string {
	return w.file.Name()
}

func (w *Writer[T]) Append(v T) error {
	w.scratch.Reset()
	if err := w.conv.Write(&w.scratch, v); err != nil {
		return err
	}
	payload := w.scratch.Bytes()

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))

	if _, err := w.buf.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close writes the footer and closes the file.
func (w *Writer[T]) Close() error {
	var footer [FooterSize]byte
	binary.LittleEndian.PutUint64(footer[0:8], uint64(w.count))
	binary.LittleEndian.PutUint64(footer[8:16], MagicNumber)
	if _, err := w.buf.Write(footer[:]); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Reader iterates the values of a run file in write order.
type Reader[T any] struct {
	file   *os.File
	reader *bufio.Reader
	conv   codec.Converter[T]
	count  int64
	read   int64
}

// Open opens a run file written by Writer.
func Open[T any](path string, conv codec.Converter[T]) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.Size() < FooterSize {
		f.Close()
		return nil, ErrTruncated
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, stat.Size()-FooterSize); err != nil {
		f.Close()
		return nil, err
	}
	if binary.LittleEndian.Uint64(footer[8:16]) != MagicNumber {
		f.Close()
		return nil, ErrBadMagic
	}

	return &Reader[T]{
		file:   f,
		reader: bufio.NewReader(f),
		conv:   conv,
		count:  int64(binary.LittleEndian.Uint64(footer[0:8])),
	}, nil
}

// Len returns the number of values in the run.
func (r *Reader[T]) Len() int64 {
	return r.count
}

// Next returns the next value, or io.EOF after the last one.
func (r *Reader[T]) Next() (T, error) {
	var zero T
	if r.read >= r.count {
		return zero, io.EOF
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.reader, header[:]); err != nil {
		return zero, errors.Wrap(ErrCorrupted, err.Error())
	}
	storedCRC := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return zero, errors.Wrap(ErrCorrupted, err.Error())
	}
	if crc32.ChecksumIEEE(payload) != storedCRC {
		return zero, ErrCRC
	}

	v, err := codec.Unmarshal(r.conv, payload)
	if err != nil {
		return zero, err
	}
	r.read++
	return v, nil
}

func (r *Reader[T]) Close() error {
	return r.file.Close()
}

// Package store keeps serialized bags as named, immutable streams. A bag
// written by a ZipMaterializer is one item, and a validator reads it back
// through the io.ReaderAt returned by Open.
//
// FileSystem is the implementation used on disk. Memory is useful for
// testing.
package store

import (
	"io"

	"github.com/pkg/errors"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store is a stream based key-value store. Items are immutable once stored,
// but they may be deleted and then replaced with a new value. An item only
// becomes visible once the writer returned by Create is closed.
//
// Keys are used as file names by the FileSystem store, so they may not
// contain slashes, white space, or control characters.
//
// Open returns a ReadAtCloser instead of a ReadCloser since reading a zip
// file needs random access.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only pieces of a Store.
type ROStore interface {
	List() ([]string, error)
	ListPrefix(prefix string) ([]string, error)
	Open(key string) (ReadAtCloser, int64, error)
}

var (
	// ErrNotFound means there is no item with the given key.
	ErrNotFound = errors.New("no such item")

	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("key already exists")

	// ErrBadKey means a key is empty, is not valid UTF-8, or contains a
	// slash, white space, or a control character.
	ErrBadKey = errors.New("invalid key")
)

// NewReader converts a ReaderAt into a io.Reader. It is here as a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}

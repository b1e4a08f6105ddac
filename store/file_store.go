package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileSystem stores each item as one file in a directory. Items are written
// to a scratch subdirectory and renamed into place when closed, so a
// partially written item is never visible.
type FileSystem struct {
	root string
	log  logrus.FieldLogger
}

const (
	// the subdir to store files while they are being written to.
	scratchdir = ".scratch"
)

var (
	// make sure it implements the Store interface
	_ Store = &FileSystem{}
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root: root, log: logrus.StandardLogger()}
}

// List returns every key in the store, sorted.
func (s *FileSystem) List() ([]string, error) {
	return s.ListPrefix("")
}

// ListPrefix returns the sorted keys beginning with the given prefix. Entries
// in the root which could not have been created by this store are skipped.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || name == scratchdir {
			continue
		}
		if !e.Type().IsRegular() || isKeyValid(name) != nil {
			s.log.WithField("path", filepath.Join(s.root, name)).Debugln("skipping non-item")
			continue
		}
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// Open returns a reader for the given item along with its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := isKeyValid(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return nil, 0, errors.Wrap(ErrNotFound, key)
	} else if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create creates a new item with the given key, and a writer to allow for
// saving data into the new item.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := isKeyValid(key); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	if _, err := os.Lstat(target); !os.IsNotExist(err) {
		return nil, errors.Wrap(ErrKeyExists, key)
	}
	scratch := filepath.Join(s.root, scratchdir)
	if err := os.MkdirAll(scratch, 0775); err != nil {
		return nil, err
	}
	// pass the O_EXCL flag explicitly to prevent overwriting
	// a concurrent writer of the same key
	temp := filepath.Join(scratch, key)
	w, err := os.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return &moveCloser{File: w, source: temp, target: target}, nil
}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	*os.File
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.File.Close()
	if err == nil {
		if _, serr := os.Lstat(w.target); !os.IsNotExist(serr) {
			err = errors.Wrap(ErrKeyExists, filepath.Base(w.target))
		}
	}
	if err == nil {
		return os.Rename(w.source, w.target)
	}
	os.Remove(w.source)
	return err
}

// Delete the given key from the store. It is not an error if the key doesn't
// exist.
func (s *FileSystem) Delete(key string) error {
	if err := isKeyValid(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, key))
	// don't report a missing file as an error
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// isKeyValid checks that a key can be used as a file name.
func isKeyValid(key string) error {
	if key == "" || key == "." || key == ".." || key == scratchdir {
		return errors.Wrapf(ErrBadKey, "%q", key)
	}
	if !utf8.ValidString(key) {
		return errors.Wrapf(ErrBadKey, "%q is not UTF-8", key)
	}
	for _, r := range key {
		switch {
		case r == '/' || r == '\\':
			return errors.Wrapf(ErrBadKey, "%q contains a slash", key)
		case unicode.IsSpace(r):
			return errors.Wrapf(ErrBadKey, "%q contains white space", key)
		case unicode.IsControl(r):
			return errors.Wrapf(ErrBadKey, "%q contains a control character", key)
		}
	}
	return nil
}

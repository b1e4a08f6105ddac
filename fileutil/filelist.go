// Package fileutil enumerates the files which make up a bag payload.
//
// A Lister returns every regular file under a root directory together with
// its slash separated path relative to the root and its size. The default
// Walker refuses symbolic links and anything it cannot read, since either
// would let the finished bag disagree with its source.
package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// File describes one payload file.
type File struct {
	Path string // location on disk
	Name string // slash separated path relative to the listing root
	Size int64  // size in bytes at the time of listing
}

// A Lister enumerates the payload files under root. Implementations apply
// whatever exclusion policy they like; every File returned will be bagged.
type Lister interface {
	List(root string) ([]File, error)
}

var (
	// ErrSymlink means a symbolic link was found while walking a tree.
	ErrSymlink = errors.New("symbolic links are not allowed")

	// ErrIrregular means something other than a file or directory, such as
	// a device or named pipe, was found while walking a tree.
	ErrIrregular = errors.New("not a regular file")

	// ErrUnreadable means a file or directory does not have read permission.
	ErrUnreadable = errors.New("no read permission")
)

// PathError ties a listing failure to the path which caused it.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string { return e.Path + ": " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error { return e.Err }

// Cause returns the underlying error, for github.com/pkg/errors.
func (e *PathError) Cause() error { return e.Err }

// Walker lists every file under a directory tree. The zero value is ready
// to use.
type Walker struct {
	// Skip, if not nil, is consulted for every entry below the root. If it
	// returns true a file is left out and a directory is not descended.
	Skip func(name string, d fs.DirEntry) bool
}

var _ Lister = Walker{}

// List walks root and returns its files sorted by Name. Any symbolic link,
// irregular file, or unreadable entry aborts the walk with a *PathError.
func (w Walker) List(root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &PathError{Path: root, Err: errors.New("not a directory")}
	}

	var result []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &PathError{Path: p, Err: err}
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return &PathError{Path: p, Err: err}
		}
		name := filepath.ToSlash(rel)
		if w.Skip != nil && w.Skip(name, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return &PathError{Path: p, Err: ErrSymlink}
		case d.IsDir():
			if !readable(p) {
				return &PathError{Path: p, Err: ErrUnreadable}
			}
			return nil
		case !d.Type().IsRegular():
			return &PathError{Path: p, Err: ErrIrregular}
		}
		if !readable(p) {
			return &PathError{Path: p, Err: ErrUnreadable}
		}
		fi, err := d.Info()
		if err != nil {
			return &PathError{Path: p, Err: err}
		}
		result = append(result, File{
			Path: p,
			Name: name,
			Size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortByName(result)
	return result, nil
}

// SortByName sorts files by their relative name, in byte order.
func SortByName(files []File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
}

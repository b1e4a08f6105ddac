package bagit

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/bagger/store"
)

// A Materializer moves a completely assembled bag from the staging directory
// to its final location. On success the staging directory must no longer
// exist. On failure it may be left behind for the caller to remove.
type Materializer interface {
	Materialize(staging, dst string) error
}

// RenameMaterializer renames the staging directory to the destination. The
// destination must not exist.
type RenameMaterializer struct{}

// Materialize implements Materializer.
func (RenameMaterializer) Materialize(staging, dst string) error {
	_, err := os.Lstat(dst)
	if err == nil {
		return errors.Wrap(ErrExists, dst)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(staging, dst)
}

// ZipMaterializer saves the bag as an uncompressed zip file in a Store. The
// key is the base name of the destination with ".zip" added, and every entry
// is inside a directory having the base name of the destination, as the
// BagIt serialization rules require.
type ZipMaterializer struct {
	Store store.Store
}

// ZipKey returns the store key a ZipMaterializer uses for dst.
func ZipKey(dst string) string {
	return filepath.Base(dst) + ".zip"
}

// Materialize implements Materializer.
func (zm ZipMaterializer) Materialize(staging, dst string) error {
	key := ZipKey(dst)
	if keyExists(zm.Store, key) {
		return errors.Wrap(ErrExists, key)
	}
	w, err := zm.Store.Create(key)
	if err != nil {
		return err
	}
	err = writeZip(w, staging, filepath.Base(dst))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		zm.Store.Delete(key)
		return err
	}
	return os.RemoveAll(staging)
}

func keyExists(s store.ROStore, key string) bool {
	r, _, err := s.Open(key)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

// writeZip copies every file and directory under dir into a zip stream,
// giving each one the prefix dirname.
func writeZip(w io.Writer, dir, dirname string) error {
	z := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header := &zip.FileHeader{
			Name:   path.Join(dirname, filepath.ToSlash(rel)),
			Method: zip.Store,
		}
		header.Modified = info.ModTime()
		if d.IsDir() {
			// directories get entries too, so an empty payload survives
			header.Name += "/"
			_, err = z.CreateHeader(header)
			return err
		}
		out, err := z.CreateHeader(header)
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		return err
	})
	if err != nil {
		return err
	}
	return z.Close()
}

// OpenZip opens a zipped bag saved in a store, such as one written by a
// ZipMaterializer. The returned file system is rooted at the bag's top
// directory and may be given to a Validator. The Closer must be closed once
// the file system is no longer needed.
func OpenZip(s store.ROStore, key string) (fs.FS, io.Closer, error) {
	rac, size, err := s.Open(key)
	if err != nil {
		return nil, nil, err
	}
	z, err := zip.NewReader(rac, size)
	if err != nil {
		rac.Close()
		return nil, nil, &StructuralError{Op: "validate", File: key, Err: err}
	}
	// every file should share the same top directory
	if len(z.File) == 0 {
		rac.Close()
		return nil, nil, &StructuralError{Op: "validate", File: key, Err: errors.New("empty zip file")}
	}
	dirname := z.File[0].Name
	i := strings.Index(dirname, "/")
	if i <= 0 {
		rac.Close()
		return nil, nil, &StructuralError{Op: "validate", File: key, Err: errors.New("bag is not inside a directory")}
	}
	dirname = dirname[:i]
	fsys, err := fs.Sub(z, dirname)
	if err != nil {
		rac.Close()
		return nil, nil, &StructuralError{Op: "validate", File: key, Err: err}
	}
	return fsys, rac, nil
}

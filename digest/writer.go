package digest

import (
	"encoding/hex"
	"hash"
	"io"
)

// A Writer wraps an io.Writer and also calculates a digest for each of a set
// of algorithms over the bytes written. Each Writer owns its hash state, so
// separate goroutines should use separate Writers.
type Writer struct {
	io.Writer // our io.MultiWriter
	names     []string
	hashes    []hash.Hash
	count     int64
}

// New returns a Writer wrapping w which computes a digest for every named
// algorithm. Pass a nil w to only compute the digests.
func New(w io.Writer, names []string) (*Writer, error) {
	if err := Check(names); err != nil {
		return nil, err
	}
	dw := &Writer{
		names:  make([]string, len(names)),
		hashes: make([]hash.Hash, len(names)),
	}
	outputs := make([]io.Writer, 0, len(names)+1)
	if w != nil {
		outputs = append(outputs, w)
	}
	for i, name := range names {
		n := Normalize(name)
		dw.names[i] = n
		dw.hashes[i] = algorithms[n].new()
		outputs = append(outputs, dw.hashes[i])
	}
	dw.Writer = io.MultiWriter(outputs...)
	return dw, nil
}

// Write passes p on to the wrapped writer and every hash.
func (dw *Writer) Write(p []byte) (int, error) {
	n, err := dw.Writer.Write(p)
	dw.count += int64(n)
	return n, err
}

// Count returns the number of bytes written so far.
func (dw *Writer) Count() int64 {
	return dw.count
}

// Sum returns the lowercase hex digest for the given algorithm of what has
// been written so far. It returns the empty string if the writer is not
// computing that algorithm.
func (dw *Writer) Sum(name string) string {
	n := Normalize(name)
	for i := range dw.names {
		if dw.names[i] == n {
			return hex.EncodeToString(dw.hashes[i].Sum(nil))
		}
	}
	return ""
}

// Sums returns a map from algorithm name to lowercase hex digest.
func (dw *Writer) Sums() map[string]string {
	result := make(map[string]string, len(dw.names))
	for i, name := range dw.names {
		result[name] = hex.EncodeToString(dw.hashes[i].Sum(nil))
	}
	return result
}

// Reader reads r until EOF and returns its digests together with the number
// of bytes read. The stream is read exactly once. The reader is not closed.
func Reader(r io.Reader, names []string) (map[string]string, int64, error) {
	dw, err := New(nil, names)
	if err != nil {
		return nil, 0, err
	}
	_, err = io.Copy(dw, r)
	return dw.Sums(), dw.Count(), err
}

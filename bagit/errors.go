package bagit

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A StructuralError means a bag, or the tree being bagged, does not have the
// required shape: a missing or malformed bookkeeping file, a manifest path
// escaping the payload, manifests which disagree, or a source file which
// could not be read. It always aborts the operation in progress.
type StructuralError struct {
	Op   string // "create" or "validate"
	File string // bookkeeping file involved, if any, e.g. "manifest-md5.txt"
	Line int    // 1-based line number in File, or 0
	Path string // payload or source path involved, if any
	Err  error
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("bagit: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(e.Line))
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying error.
func (e *StructuralError) Unwrap() error { return e.Err }

// Cause returns the underlying error, for github.com/pkg/errors.
func (e *StructuralError) Cause() error { return e.Err }

// A ConfigError means the caller asked for something impossible, such as an
// unknown digest algorithm or a non-positive number of workers. It is always
// reported before any file is read or written.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bagit: invalid %s %q: %s", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// Cause returns the underlying error, for github.com/pkg/errors.
func (e *ConfigError) Cause() error { return e.Err }

var (
	// ErrNoManifest means a bag has no payload manifest files.
	ErrNoManifest = errors.New("no payload manifest found")

	// ErrNoOxum means a fast validation was requested on a bag without a
	// Payload-Oxum.
	ErrNoOxum = errors.New("bag has no Payload-Oxum, cannot do a fast validation")

	// ErrBadPath means a manifest path is absolute, contains "." or ".."
	// elements, or lies outside the payload directory.
	ErrBadPath = errors.New("path is not a valid bag path")

	// ErrDuplicatePath means the same path appears twice in one manifest.
	ErrDuplicatePath = errors.New("duplicate path in manifest")

	// ErrExists means the destination of a new bag already exists.
	ErrExists = errors.New("destination already exists")

	// ErrIncompleteManifest means a payload manifest omits a path which
	// another payload manifest lists.
	ErrIncompleteManifest = errors.New("path missing from manifest")

	// ErrSymlink means a bag being validated contains a symbolic link.
	ErrSymlink = errors.New("symbolic links are not allowed in a bag")
)

// A Discrepancy is one finding from a validation. It is one of
// ChecksumMismatch, FileMissing, UnexpectedFile, or OxumMismatch; use a type
// switch to tell them apart.
type Discrepancy interface {
	fmt.Stringer
	discrepancy()
}

// ChecksumMismatch means a file is present and listed, but a recomputed
// digest disagrees with the manifest for one algorithm.
type ChecksumMismatch struct {
	Path      string
	Algorithm string
	Expected  string
	Found     string
}

// FileMissing means a file is listed in a manifest but is not in the bag.
type FileMissing struct {
	Path string
}

// UnexpectedFile means a file in the payload directory is in no manifest.
type UnexpectedFile struct {
	Path string
}

// OxumMismatch means the payload byte or file count differs from the
// declared Payload-Oxum.
type OxumMismatch struct {
	Expected Oxum
	Found    Oxum
}

func (ChecksumMismatch) discrepancy() {}
func (FileMissing) discrepancy()      {}
func (UnexpectedFile) discrepancy()   {}
func (OxumMismatch) discrepancy()     {}

func (d ChecksumMismatch) String() string { return DefaultMessages.Format(d) }
func (d FileMissing) String() string      { return DefaultMessages.Format(d) }
func (d UnexpectedFile) String() string   { return DefaultMessages.Format(d) }
func (d OxumMismatch) String() string     { return DefaultMessages.Format(d) }

// Messages is a catalog of the user facing text for each kind of
// discrepancy. Each entry is a fmt format string; see DefaultMessages for the
// arguments each one receives.
type Messages struct {
	ChecksumMismatch string // path, algorithm, expected, found
	FileMissing      string // path
	UnexpectedFile   string // path
	OxumMismatch     string // found files, found bytes, expected files, expected bytes
	Valid            string // bag name
	Invalid          string // bag name, number of discrepancies
}

// DefaultMessages is the English catalog.
var DefaultMessages = Messages{
	ChecksumMismatch: "%s checksum validation failed (alg=%s expected=%s found=%s)",
	FileMissing:      "%s exists in manifest but not found on filesystem",
	UnexpectedFile:   "%s exists on filesystem but is not in manifest",
	OxumMismatch:     "Oxum error. Found %d files and %d bytes on disk; expected %d files and %d bytes.",
	Valid:            "%s is valid",
	Invalid:          "%s is invalid: %d problems",
}

// Format renders d using this catalog.
func (m Messages) Format(d Discrepancy) string {
	switch d := d.(type) {
	case ChecksumMismatch:
		return fmt.Sprintf(m.ChecksumMismatch, d.Path, d.Algorithm, d.Expected, d.Found)
	case FileMissing:
		return fmt.Sprintf(m.FileMissing, d.Path)
	case UnexpectedFile:
		return fmt.Sprintf(m.UnexpectedFile, d.Path)
	case OxumMismatch:
		return fmt.Sprintf(m.OxumMismatch, d.Found.Files, d.Found.Bytes, d.Expected.Files, d.Expected.Bytes)
	}
	return fmt.Sprintf("%#v", d)
}

// Result is the outcome of a validation. A bag is valid exactly when no
// discrepancies were found. Every discrepancy is kept; nothing is dropped to
// report a later one.
type Result struct {
	Fast          bool  // true if only the Payload-Oxum was checked
	Bytes         int64 // number of bytes checksummed
	Discrepancies []Discrepancy
}

// Valid returns true if there are no discrepancies.
func (r *Result) Valid() bool {
	return len(r.Discrepancies) == 0
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Discrepancies: r.Discrepancies}
}

// Report writes a summary line followed by one line per discrepancy.
func (r *Result) Report(w io.Writer, name string, m Messages) error {
	var err error
	if r.Valid() {
		_, err = fmt.Fprintf(w, m.Valid+"\n", name)
		return err
	}
	_, err = fmt.Fprintf(w, m.Invalid+"\n", name, len(r.Discrepancies))
	for _, d := range r.Discrepancies {
		if err != nil {
			break
		}
		_, err = fmt.Fprintln(w, m.Format(d))
	}
	return err
}

// ValidationError carries every discrepancy found in an invalid bag.
type ValidationError struct {
	Discrepancies []Discrepancy
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, d := range e.Discrepancies {
		parts = append(parts, d.String())
	}
	return "invalid bag: " + strings.Join(parts, " ; ")
}

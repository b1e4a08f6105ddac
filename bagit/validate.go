package bagit

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/facebookgo/clock"
	"github.com/facebookgo/stats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ndlib/bagger/digest"
	"github.com/ndlib/bagger/util"
)

// A Validator checks bags against their own manifests. The exported fields
// may be changed between calls to Validate.
type Validator struct {
	// Processes is the number of files checksummed at once. Must be at
	// least 1.
	Processes int

	// Fast selects comparing the Payload-Oxum against the payload's byte and
	// file counts instead of recomputing every digest.
	Fast bool

	// BytesPerSecond, if positive, limits the combined rate payload files
	// are read at.
	BytesPerSecond float64

	Clock clock.Clock
	Log   logrus.FieldLogger
	Stats stats.Client
}

// NewValidator returns a Validator doing a full validation with one worker.
func NewValidator() *Validator {
	return &Validator{Processes: 1}
}

// Validate checks the bag at the root of fsys with one worker.
func Validate(ctx context.Context, fsys fs.FS, fast bool) (*Result, error) {
	v := NewValidator()
	v.Fast = fast
	return v.Validate(ctx, fsys)
}

// ValidateDir checks the bag in the directory dir with one worker.
func ValidateDir(ctx context.Context, dir string, fast bool) (*Result, error) {
	v := NewValidator()
	v.Fast = fast
	return v.ValidateDir(ctx, dir)
}

// ValidateDir checks the bag in the directory dir.
func (v *Validator) ValidateDir(ctx context.Context, dir string) (*Result, error) {
	return v.validate(ctx, os.DirFS(dir), v.logger().WithField("bag", dir))
}

// Validate checks the bag at the root of fsys. Every discrepancy found is
// collected in the Result, whose Valid method says whether the bag passed.
// An error is returned only if the bag could not be checked at all: a
// *ConfigError for bad settings, a *StructuralError if the bookkeeping files
// are missing or malformed, or an I/O or context error.
//
// A full validation reports missing files, then unexpected payload files,
// then checksum mismatches in manifest order. Paths named in a fetch.txt
// may be absent without being reported.
func (v *Validator) Validate(ctx context.Context, fsys fs.FS) (*Result, error) {
	return v.validate(ctx, fsys, v.logger())
}

func (v *Validator) validate(ctx context.Context, fsys fs.FS, log logrus.FieldLogger) (*Result, error) {
	if v.Processes < 1 {
		return nil, &ConfigError{
			Field: "processes",
			Value: fmt.Sprint(v.Processes),
			Err:   errors.New("must be at least 1"),
		}
	}
	if v.BytesPerSecond < 0 {
		return nil, &ConfigError{
			Field: "bytes per second",
			Value: fmt.Sprint(v.BytesPerSecond),
			Err:   errors.New("must not be negative"),
		}
	}
	start := v.clock().Now()

	bag, err := open(fsys, log)
	if err != nil {
		return nil, withOp(err, "validate")
	}

	var result *Result
	if v.Fast {
		result, err = v.fast(bag, fsys)
	} else {
		result, err = v.full(ctx, bag, fsys, log)
	}
	if err != nil {
		return nil, withOp(err, "validate")
	}

	for _, d := range result.Discrepancies {
		log.Warnln(d)
	}
	stats.BumpSum(v.Stats, "validate.bytes", float64(result.Bytes))
	stats.BumpSum(v.Stats, "validate.discrepancies", float64(len(result.Discrepancies)))
	stats.BumpAvg(v.Stats, "validate.seconds", elapsed(v.clock(), start))
	log.WithFields(logrus.Fields{
		"fast":          v.Fast,
		"bytes":         result.Bytes,
		"discrepancies": len(result.Discrepancies),
	}).Infoln("bag validated")
	return result, nil
}

func (v *Validator) fast(bag *Bag, fsys fs.FS) (*Result, error) {
	result := &Result{Fast: true}
	expected, ok, err := bag.Oxum()
	if err != nil {
		return nil, &StructuralError{File: infoFile, Err: err}
	}
	if !ok {
		return nil, &StructuralError{File: infoFile, Err: ErrNoOxum}
	}
	found, err := payloadOxum(fsys)
	if err != nil {
		return nil, err
	}
	if found != expected {
		result.Discrepancies = append(result.Discrepancies, OxumMismatch{Expected: expected, Found: found})
	}
	return result, nil
}

// checked is the outcome of digesting one listed file.
type checked struct {
	missing bool
	size    int64
	sums    map[string]string
}

func (v *Validator) full(ctx context.Context, bag *Bag, fsys fs.FS, log logrus.FieldLogger) (*Result, error) {
	result := &Result{}
	onDisk, err := payloadFiles(fsys)
	if err != nil {
		return nil, err
	}
	remote := bag.remote()

	all := mergeEntries(append(append([]*Manifest{}, bag.Manifests...), bag.TagManifests...))
	listed := make(map[string]bool, len(all))
	var missing []string
	var present []ManifestEntry
	for _, e := range all {
		listed[e.Path] = true
		var exists bool
		if strings.HasPrefix(e.Path, PayloadDir+"/") {
			exists = onDisk[e.Path]
		} else if exists = isFile(fsys, e.Path); exists {
			link, err := hasSymlink(fsys, e.Path)
			if err != nil {
				return nil, &StructuralError{Path: e.Path, Err: err}
			}
			if link {
				return nil, &StructuralError{Path: e.Path, Err: ErrSymlink}
			}
		}
		switch {
		case exists:
			present = append(present, e)
		case !remote[e.Path]:
			missing = append(missing, e.Path)
		}
	}
	sort.Strings(missing)
	for _, p := range missing {
		result.Discrepancies = append(result.Discrepancies, FileMissing{Path: p})
	}

	var unexpected []string
	for p := range onDisk {
		if !listed[p] {
			unexpected = append(unexpected, p)
		}
	}
	sort.Strings(unexpected)
	for _, p := range unexpected {
		result.Discrepancies = append(result.Discrepancies, UnexpectedFile{Path: p})
	}

	var throttle *util.Throttle
	if v.BytesPerSecond > 0 {
		throttle = util.NewThrottle(v.BytesPerSecond)
		defer throttle.Stop()
	}
	checks, err := util.Map(ctx, v.Processes, len(present), func(ctx context.Context, i int) (checked, error) {
		return v.checkFile(ctx, fsys, present[i], throttle, log)
	})
	if err != nil {
		return nil, err
	}

	for i, e := range present {
		c := checks[i]
		if c.missing {
			// removed after the listing was made
			result.Discrepancies = append(result.Discrepancies, FileMissing{Path: e.Path})
			continue
		}
		result.Bytes += c.size
		for _, alg := range sortedKeys(e.Digests) {
			if c.sums[alg] != e.Digests[alg] {
				result.Discrepancies = append(result.Discrepancies, ChecksumMismatch{
					Path:      e.Path,
					Algorithm: alg,
					Expected:  e.Digests[alg],
					Found:     c.sums[alg],
				})
			}
		}
	}
	stats.BumpSum(v.Stats, "validate.files", float64(len(present)))
	return result, nil
}

func (v *Validator) checkFile(ctx context.Context, fsys fs.FS, e ManifestEntry, throttle *util.Throttle, log logrus.FieldLogger) (checked, error) {
	f, err := fsys.Open(e.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return checked{missing: true}, nil
	} else if err != nil {
		return checked{}, &StructuralError{Path: e.Path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if throttle != nil {
		r = throttle.Reader(ctx, f)
	}
	sums, n, err := digest.Reader(r, sortedKeys(e.Digests))
	if err != nil {
		if ctx.Err() != nil {
			return checked{}, ctx.Err()
		}
		return checked{}, &StructuralError{Path: e.Path, Err: err}
	}
	log.WithFields(logrus.Fields{
		"path":  e.Path,
		"bytes": n,
	}).Debugln("checked")
	return checked{size: n, sums: sums}, nil
}

// payloadFiles returns the set of files under the payload directory.
func payloadFiles(fsys fs.FS) (map[string]bool, error) {
	result := make(map[string]bool)
	err := walkPayload(fsys, func(p string, d fs.DirEntry) error {
		result[p] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// walkPayload calls fn for every file under the payload directory. A
// symbolic link anywhere inside it ends the walk with a *StructuralError
// naming the link.
func walkPayload(fsys fs.FS, fn func(p string, d fs.DirEntry) error) error {
	err := fs.WalkDir(fsys, PayloadDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return &StructuralError{Path: p, Err: ErrSymlink}
		}
		if d.IsDir() {
			return nil
		}
		return fn(p, d)
	})
	var se *StructuralError
	if err != nil && !errors.As(err, &se) {
		return &StructuralError{Path: PayloadDir, Err: err}
	}
	return err
}

// hasSymlink reports whether name or any directory above it is a symbolic
// link. Links are not followed.
func hasSymlink(fsys fs.FS, name string) (bool, error) {
	dir := "."
	for _, elem := range strings.Split(name, "/") {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return false, err
		}
		for _, d := range entries {
			if d.Name() == elem && d.Type()&fs.ModeSymlink != 0 {
				return true, nil
			}
		}
		dir = path.Join(dir, elem)
	}
	return false, nil
}

func isFile(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && !fi.IsDir()
}

func sortedKeys(m map[string]string) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// withOp fills in the operation of a *StructuralError.
func withOp(err error, op string) error {
	var se *StructuralError
	if errors.As(err, &se) && se.Op == "" {
		se.Op = op
	}
	return err
}

func (v *Validator) clock() clock.Clock {
	if v.Clock == nil {
		return clock.New()
	}
	return v.Clock
}

func (v *Validator) logger() logrus.FieldLogger {
	if v.Log == nil {
		return logrus.StandardLogger()
	}
	return v.Log
}

package bagit

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"github.com/facebookgo/stats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ndlib/bagger/digest"
	"github.com/ndlib/bagger/fileutil"
	"github.com/ndlib/bagger/util"
)

// DefaultAlgorithms are used by a Builder which is not given any.
var DefaultAlgorithms = []string{"sha256", "sha512"}

// A Builder creates new bags from directory trees. The exported fields may be
// changed before the first call to Create, but not during one.
type Builder struct {
	// Algorithms to write manifests for. If empty DefaultAlgorithms is used.
	Algorithms []string

	// Processes is the number of payload files copied at once. Must be at
	// least 1.
	Processes int

	// Lister enumerates the source tree. Defaults to a fileutil.Walker.
	Lister fileutil.Lister

	// Materializer puts the finished bag in place. Defaults to
	// RenameMaterializer.
	Materializer Materializer

	// TempDir is where the bag is assembled. Defaults to the directory
	// containing the destination, so the final rename does not cross
	// devices.
	TempDir string

	Clock clock.Clock
	Log   logrus.FieldLogger
	Stats stats.Client
}

// NewBuilder returns a Builder using the default algorithms and one worker.
func NewBuilder() *Builder {
	return &Builder{
		Algorithms: DefaultAlgorithms,
		Processes:  1,
	}
}

// Create makes a bag at dst holding a copy of every file under src, using
// the given algorithms and number of workers. See Builder.Create.
func Create(ctx context.Context, src, dst string, algorithms []string, info *Info, processes int) (*Bag, error) {
	b := NewBuilder()
	b.Algorithms = algorithms
	b.Processes = processes
	return b.Create(ctx, src, dst, info)
}

// Create copies every file under src into the payload of a new bag at dst.
// The tags in info are written to bag-info.txt along with Payload-Oxum, and
// Bag-Software-Agent, Bagging-Date, and Bag-Size unless info already has
// them. The source tree is never changed.
//
// The bag is assembled in a temporary directory and only handed to the
// Materializer once every manifest has been written. If anything fails the
// temporary directory is removed and nothing is left at dst.
func (b *Builder) Create(ctx context.Context, src, dst string, info *Info) (*Bag, error) {
	algs, err := b.config()
	if err != nil {
		return nil, err
	}
	log := b.logger().WithField("bag", dst)
	start := b.clock().Now()

	files, err := b.lister().List(src)
	if err != nil {
		var pe *fileutil.PathError
		if errors.As(err, &pe) {
			return nil, &StructuralError{Op: "create", Path: pe.Path, Err: pe.Err}
		}
		return nil, &StructuralError{Op: "create", Path: src, Err: err}
	}
	fileutil.SortByName(files)

	tmpdir := b.TempDir
	if tmpdir == "" {
		tmpdir = filepath.Dir(dst)
	}
	staging, err := os.MkdirTemp(tmpdir, "."+filepath.Base(dst)+".tmp-")
	if err != nil {
		return nil, &StructuralError{Op: "create", Path: dst, Err: err}
	}
	bag, err := b.assemble(ctx, staging, files, algs, info)
	if err == nil {
		err = os.Chmod(staging, 0755)
	}
	if err == nil {
		err = b.materializer().Materialize(staging, dst)
		if err != nil {
			err = &StructuralError{Op: "create", Path: dst, Err: err}
		}
	}
	if err != nil {
		os.RemoveAll(staging)
		log.WithError(err).Errorln("bag creation failed")
		return nil, err
	}

	ox, _, _ := bag.Oxum()
	stats.BumpSum(b.Stats, "create.files", float64(ox.Files))
	stats.BumpSum(b.Stats, "create.bytes", float64(ox.Bytes))
	stats.BumpAvg(b.Stats, "create.seconds", elapsed(b.clock(), start))
	log.WithFields(logrus.Fields{
		"files": ox.Files,
		"bytes": ox.Bytes,
	}).Infoln("bag created")
	return bag, nil
}

func (b *Builder) config() ([]string, error) {
	algs := b.Algorithms
	if len(algs) == 0 {
		algs = DefaultAlgorithms
	}
	if err := digest.Check(algs); err != nil {
		return nil, &ConfigError{Field: "algorithm", Value: strings.Join(algs, ","), Err: err}
	}
	result := make([]string, len(algs))
	for i, alg := range algs {
		result[i] = digest.Normalize(alg)
	}
	if b.Processes < 1 {
		return nil, &ConfigError{
			Field: "processes",
			Value: fmt.Sprint(b.Processes),
			Err:   errors.New("must be at least 1"),
		}
	}
	return result, nil
}

// copied is the outcome of copying one payload file.
type copied struct {
	size int64
	sums map[string]string
}

// assemble writes the whole bag into staging.
func (b *Builder) assemble(ctx context.Context, staging string, files []fileutil.File, algs []string, info *Info) (*Bag, error) {
	// an empty source still gets a payload directory
	if err := os.Mkdir(filepath.Join(staging, PayloadDir), 0755); err != nil {
		return nil, &StructuralError{Op: "create", Path: PayloadDir, Err: err}
	}
	results, err := util.Map(ctx, b.Processes, len(files), func(ctx context.Context, i int) (copied, error) {
		return b.copyFile(staging, files[i], algs)
	})
	if err != nil {
		return nil, err
	}

	bag := &Bag{
		Version:  Version,
		Encoding: Encoding,
		Info:     info.Clone(),
	}
	var ox Oxum
	for _, alg := range algs {
		bag.Manifests = append(bag.Manifests, NewManifest(alg, false))
	}
	for i, f := range files {
		ox.Bytes += results[i].size
		ox.Files++
		for _, m := range bag.Manifests {
			if err := m.Add(PayloadDir+"/"+f.Name, results[i].sums[m.Algorithm]); err != nil {
				return nil, &StructuralError{Op: "create", Path: f.Path, Err: err}
			}
		}
	}
	sortManifests(bag.Manifests)
	b.addTags(bag.Info, ox)

	declaration := NewInfo(
		Field{Name: TagVersion, Value: Version},
		Field{Name: TagEncoding, Value: Encoding},
	)
	tagfiles := []string{declarationFile, infoFile}
	if err := writeFile(staging, declarationFile, declaration); err != nil {
		return nil, err
	}
	if err := writeFile(staging, infoFile, bag.Info); err != nil {
		return nil, err
	}
	for _, m := range bag.Manifests {
		if err := writeFile(staging, m.Filename(), m); err != nil {
			return nil, err
		}
		tagfiles = append(tagfiles, m.Filename())
	}

	// the tag manifests cover everything written so far
	for _, alg := range algs {
		bag.TagManifests = append(bag.TagManifests, NewManifest(alg, true))
	}
	for _, name := range tagfiles {
		sums, err := digestFile(filepath.Join(staging, name), algs)
		if err != nil {
			return nil, &StructuralError{Op: "create", File: name, Err: err}
		}
		for _, m := range bag.TagManifests {
			if err := m.Add(name, sums[m.Algorithm]); err != nil {
				return nil, &StructuralError{Op: "create", File: name, Err: err}
			}
		}
	}
	sortManifests(bag.TagManifests)
	for _, m := range bag.TagManifests {
		if err := writeFile(staging, m.Filename(), m); err != nil {
			return nil, err
		}
	}
	return bag, nil
}

// copyFile copies one source file into the payload of staging, digesting it
// on the way.
func (b *Builder) copyFile(staging string, f fileutil.File, algs []string) (copied, error) {
	if !fs.ValidPath(f.Name) || f.Name == "." {
		return copied{}, &StructuralError{Op: "create", Path: f.Path, Err: errors.Wrap(ErrBadPath, f.Name)}
	}
	in, err := os.Open(f.Path)
	if err != nil {
		return copied{}, &StructuralError{Op: "create", Path: f.Path, Err: err}
	}
	defer in.Close()
	perm := os.FileMode(0644)
	if fi, err := in.Stat(); err == nil {
		perm = fi.Mode().Perm() | 0600
	}

	target := filepath.Join(staging, PayloadDir, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return copied{}, &StructuralError{Op: "create", Path: f.Path, Err: err}
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return copied{}, &StructuralError{Op: "create", Path: f.Path, Err: err}
	}
	dw, err := digest.New(out, algs)
	if err != nil {
		out.Close()
		return copied{}, err
	}
	_, err = io.Copy(dw, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return copied{}, &StructuralError{Op: "create", Path: f.Path, Err: err}
	}
	if dw.Count() != f.Size {
		return copied{}, &StructuralError{
			Op:   "create",
			Path: f.Path,
			Err:  errors.Errorf("file changed while bagging: listed %d bytes, read %d", f.Size, dw.Count()),
		}
	}
	b.logger().WithFields(logrus.Fields{
		"path":  f.Name,
		"bytes": dw.Count(),
	}).Debugln("copied")
	return copied{size: dw.Count(), sums: dw.Sums()}, nil
}

// addTags fills in the generated bag-info.txt tags.
func (b *Builder) addTags(info *Info, ox Oxum) {
	if !info.Has(TagSoftwareAgent) {
		info.Add(TagSoftwareAgent, SoftwareAgent)
	}
	if !info.Has(TagBaggingDate) {
		info.Add(TagBaggingDate, b.clock().Now().Format("2006-01-02"))
	}
	info.Set(TagPayloadOxum, ox.String())
	if !info.Has(TagBagSize) {
		info.Add(TagBagSize, humansize(ox.Bytes))
	}
}

func (b *Builder) lister() fileutil.Lister {
	if b.Lister == nil {
		return fileutil.Walker{}
	}
	return b.Lister
}

func (b *Builder) materializer() Materializer {
	if b.Materializer == nil {
		return RenameMaterializer{}
	}
	return b.Materializer
}

func (b *Builder) clock() clock.Clock {
	if b.Clock == nil {
		return clock.New()
	}
	return b.Clock
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

// writeFile saves the serialization of wt as dir/name. The file must not
// already exist.
func writeFile(dir, name string, wt io.WriterTo) error {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return &StructuralError{Op: "create", File: name, Err: err}
	}
	_, err = wt.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &StructuralError{Op: "create", File: name, Err: err}
	}
	return nil
}

func digestFile(path string, algs []string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sums, _, err := digest.Reader(f, algs)
	return sums, err
}

// Metric constants for humansize. Lowercased so as to be unexported.
const (
	kb int64 = 1000
	mb       = 1000 * kb
	gb       = 1000 * mb
	tb       = 1000 * gb
)

// humansize gives an approximate size for the Bag-Size tag. Sizes are
// truncated, not rounded.
func humansize(size int64) string {
	var units string
	switch {
	case size < kb:
		units = "Bytes"
	case size < mb:
		size /= kb
		units = "KB"
	case size < gb:
		size /= mb
		units = "MB"
	case size < tb:
		size /= gb
		units = "GB"
	default:
		size /= tb
		units = "TB"
	}
	return fmt.Sprintf("%d %s", size, units)
}

func elapsed(c clock.Clock, start time.Time) float64 {
	return c.Now().Sub(start).Seconds()
}

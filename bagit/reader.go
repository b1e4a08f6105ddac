package bagit

import (
	"bytes"
	"io/fs"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ndlib/bagger/digest"
)

// Open loads the bookkeeping files of the bag at the root of fsys. The payload
// is not read. Manifests for algorithms this package cannot compute are
// skipped with a warning, but at least one usable payload manifest must
// remain, and every payload manifest must list the same paths. Symbolic links
// at the top of the bag are refused. Any problem with the shape of the bag is
// returned as a *StructuralError.
func Open(fsys fs.FS) (*Bag, error) {
	return open(fsys, logrus.StandardLogger())
}

func open(fsys fs.FS, log logrus.FieldLogger) (*Bag, error) {
	raw, err := fs.ReadFile(fsys, declarationFile)
	if err != nil {
		return nil, &StructuralError{File: declarationFile, Err: err}
	}
	if bytes.HasPrefix(raw, []byte(bom)) {
		return nil, &StructuralError{File: declarationFile, Line: 1, Err: errors.New("byte order mark is not allowed")}
	}
	decl, err := ParseInfo(declarationFile, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	bag := &Bag{}
	var ok bool
	bag.Version, ok = decl.Get(TagVersion)
	if !ok {
		return nil, &StructuralError{File: declarationFile, Err: errors.Errorf("missing %s", TagVersion)}
	}
	bag.Encoding, ok = decl.Get(TagEncoding)
	if !ok {
		return nil, &StructuralError{File: declarationFile, Err: errors.Errorf("missing %s", TagEncoding)}
	}
	if !strings.EqualFold(bag.Encoding, Encoding) {
		return nil, &StructuralError{File: declarationFile, Err: errors.Errorf("unsupported encoding %q", bag.Encoding)}
	}
	infoName, hasTagManifests, err := versionLayout(bag.Version)
	if err != nil {
		return nil, &StructuralError{File: declarationFile, Err: err}
	}

	top, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, &StructuralError{Path: ".", Err: err}
	}
	for _, d := range top {
		if d.Type()&fs.ModeSymlink != 0 {
			return nil, &StructuralError{Path: d.Name(), Err: ErrSymlink}
		}
	}

	fi, err := fs.Stat(fsys, PayloadDir)
	if err != nil {
		return nil, &StructuralError{Path: PayloadDir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &StructuralError{Path: PayloadDir, Err: errors.New("payload is not a directory")}
	}

	bag.Info, err = readInfo(fsys, infoName)
	if err != nil {
		return nil, err
	}

	bag.Manifests, err = readManifests(fsys, "manifest-*.txt", log)
	if err != nil {
		return nil, err
	}
	if len(bag.Manifests) == 0 {
		return nil, &StructuralError{Err: ErrNoManifest}
	}
	if hasTagManifests {
		bag.TagManifests, err = readManifests(fsys, "tagmanifest-*.txt", log)
		if err != nil {
			return nil, err
		}
	}

	bag.Fetch, err = readFetch(fsys)
	if err != nil {
		return nil, err
	}

	all := append(append([]*Manifest{}, bag.Manifests...), bag.TagManifests...)
	if err := checkAgreement(all); err != nil {
		return nil, err
	}
	if err := checkComplete(bag.Manifests); err != nil {
		return nil, err
	}
	return bag, nil
}

// versionLayout returns the name of the metadata tag file and whether tag
// manifests are defined for a BagIt version.
func versionLayout(version string) (string, bool, error) {
	switch version {
	case "0.93", "0.94", "0.95":
		return oldInfoFile, false, nil
	case "0.96":
		return infoFile, false, nil
	case "0.97", "1.0":
		return infoFile, true, nil
	}
	return "", false, errors.Errorf("unsupported BagIt version %q", version)
}

// readInfo parses the metadata tag file, which is optional.
func readInfo(fsys fs.FS, name string) (*Info, error) {
	f, err := fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return NewInfo(), nil
	} else if err != nil {
		return nil, &StructuralError{File: name, Err: err}
	}
	defer f.Close()
	return ParseInfo(name, f)
}

func readManifests(fsys fs.FS, pattern string, log logrus.FieldLogger) ([]*Manifest, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, &StructuralError{Err: err}
	}
	var result []*Manifest
	for _, name := range names {
		alg, _, ok := ParseManifestName(name)
		if !ok {
			continue
		}
		if !digest.IsSupported(alg) {
			log.WithFields(logrus.Fields{
				"path":      name,
				"algorithm": alg,
			}).Warnln("skipping manifest with unsupported algorithm")
			continue
		}
		f, err := fsys.Open(name)
		if err != nil {
			return nil, &StructuralError{File: name, Err: err}
		}
		m, err := ParseManifest(name, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	sortManifests(result)
	return result, nil
}

func readFetch(fsys fs.FS) ([]FetchEntry, error) {
	f, err := fsys.Open(fetchFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, &StructuralError{File: fetchFile, Err: err}
	}
	defer f.Close()
	return ParseFetch(fetchFile, f)
}

// checkAgreement verifies that no two manifests record different digests
// for the same path and algorithm.
func checkAgreement(manifests []*Manifest) error {
	type source struct {
		digest string
		file   string
	}
	seen := make(map[string]source)
	for _, m := range manifests {
		for _, e := range m.entries {
			key := m.Algorithm + "\x00" + e.Path
			prev, ok := seen[key]
			if !ok {
				seen[key] = source{digest: e.Digest, file: m.Filename()}
				continue
			}
			if prev.digest != e.Digest {
				return &StructuralError{
					File: m.Filename(),
					Path: e.Path,
					Err:  errors.Errorf("digest disagrees with %s", prev.file),
				}
			}
		}
	}
	return nil
}

// checkComplete verifies that every payload manifest lists the same paths.
// The first gap, in manifest and then path order, is returned.
func checkComplete(manifests []*Manifest) error {
	union := make(map[string]bool)
	for _, m := range manifests {
		for _, e := range m.entries {
			union[e.Path] = true
		}
	}
	paths := make([]string, 0, len(union))
	for p := range union {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, m := range manifests {
		if m.Len() == len(paths) {
			continue
		}
		for _, p := range paths {
			if _, ok := m.Digest(p); !ok {
				return &StructuralError{File: m.Filename(), Path: p, Err: ErrIncompleteManifest}
			}
		}
	}
	return nil
}

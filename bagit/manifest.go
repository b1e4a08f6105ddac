package bagit

import (
	"bufio"
	"io"
	"io/fs"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/bagger/digest"
)

// Entry is one line of a manifest.
type Entry struct {
	Path   string // relative to the bag root, e.g. "data/a.txt"
	Digest string // lowercase hex
}

// Manifest lists the digests of a set of files for one algorithm. Payload
// manifests list files under "data/"; tag manifests list the bookkeeping
// files. Entries keep the order in which they were added.
type Manifest struct {
	Algorithm string
	Tag       bool

	entries []Entry
	index   map[string]int
}

// NewManifest returns an empty manifest. The algorithm name is normalized to
// lowercase.
func NewManifest(alg string, tag bool) *Manifest {
	return &Manifest{
		Algorithm: digest.Normalize(alg),
		Tag:       tag,
		index:     make(map[string]int),
	}
}

// ManifestName returns the file name for a manifest, e.g. "manifest-md5.txt"
// or "tagmanifest-sha256.txt".
func ManifestName(alg string, tag bool) string {
	if tag {
		return "tagmanifest-" + alg + ".txt"
	}
	return "manifest-" + alg + ".txt"
}

// ParseManifestName is the inverse of ManifestName. The boolean ok is false if
// name is not a manifest file name.
func ParseManifestName(name string) (alg string, tag bool, ok bool) {
	if !strings.HasSuffix(name, ".txt") {
		return "", false, false
	}
	base := strings.TrimSuffix(name, ".txt")
	switch {
	case strings.HasPrefix(base, "tagmanifest-"):
		alg, tag = strings.TrimPrefix(base, "tagmanifest-"), true
	case strings.HasPrefix(base, "manifest-"):
		alg = strings.TrimPrefix(base, "manifest-")
	default:
		return "", false, false
	}
	if alg == "" || strings.ContainsAny(alg, "/\\") {
		return "", false, false
	}
	return digest.Normalize(alg), tag, true
}

// Filename returns the name this manifest is saved under.
func (m *Manifest) Filename() string {
	return ManifestName(m.Algorithm, m.Tag)
}

// Add appends an entry. It is an error if the path is not a clean relative
// path (or, for payload manifests, not under "data/"), if the digest is not
// hex of the right length, or if the path is already present.
func (m *Manifest) Add(path, sum string) error {
	if err := checkPath(path, m.Tag); err != nil {
		return err
	}
	sum, err := checkDigest(m.Algorithm, sum)
	if err != nil {
		return err
	}
	if _, ok := m.index[path]; ok {
		return errors.Wrap(ErrDuplicatePath, path)
	}
	m.index[path] = len(m.entries)
	m.entries = append(m.entries, Entry{Path: path, Digest: sum})
	return nil
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in order.
func (m *Manifest) Entries() []Entry {
	result := make([]Entry, len(m.entries))
	copy(result, m.entries)
	return result
}

// Digest returns the recorded digest for path.
func (m *Manifest) Digest(path string) (string, bool) {
	i, ok := m.index[path]
	if !ok {
		return "", false
	}
	return m.entries[i].Digest, true
}

// WriteTo serializes the manifest, one "<digest> <path>\n" line per entry.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(e.Digest)
		b.WriteByte(' ')
		b.WriteString(EncodePath(e.Path))
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// ParseManifest reads a manifest. The algorithm and kind of manifest are
// taken from name, which should be the manifest's file name. Blank lines and
// lines beginning with '#' are skipped. Each other line must be a hex digest
// followed by whitespace and a path; a single '*' before the path, as written
// by md5sum in binary mode, is dropped. Backslashes in paths are read as
// slashes. Any problem is returned as a *StructuralError giving the line
// number.
func ParseManifest(name string, r io.Reader) (*Manifest, error) {
	alg, tag, ok := ParseManifestName(name)
	if !ok {
		return nil, &StructuralError{File: name, Err: errors.New("not a manifest file name")}
	}
	m := NewManifest(alg, tag)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i < 0 {
			return nil, &StructuralError{File: name, Line: lineno, Err: errors.New("line has no path")}
		}
		sum := line[:i]
		path := strings.TrimPrefix(strings.TrimLeft(line[i:], " \t"), "*")
		if path == "" {
			return nil, &StructuralError{File: name, Line: lineno, Err: errors.New("line has no path")}
		}
		path = strings.ReplaceAll(DecodePath(path), "\\", "/")
		if err := m.Add(path, sum); err != nil {
			return nil, &StructuralError{File: name, Line: lineno, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &StructuralError{File: name, Line: lineno + 1, Err: err}
	}
	return m, nil
}

func checkPath(path string, tag bool) error {
	if !fs.ValidPath(path) || path == "." {
		return errors.Wrap(ErrBadPath, path)
	}
	inPayload := strings.HasPrefix(path, PayloadDir+"/")
	if !tag && !inPayload {
		return errors.Wrapf(ErrBadPath, "%s is not inside %s/", path, PayloadDir)
	}
	return nil
}

func checkDigest(alg, sum string) (string, error) {
	sum = strings.ToLower(sum)
	if sum == "" {
		return "", errors.New("empty digest")
	}
	for _, c := range sum {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return "", errors.Errorf("digest %q is not hexadecimal", sum)
		}
	}
	if n := digest.HexLen(alg); n > 0 && len(sum) != n {
		return "", errors.Errorf("digest %q has length %d, expected %d for %s", sum, len(sum), n, alg)
	}
	return sum, nil
}

var pathEncoder = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

// EncodePath escapes the characters which cannot appear literally in a
// manifest line: percent, carriage return, and line feed.
func EncodePath(path string) string {
	return pathEncoder.Replace(path)
}

// DecodePath reverses EncodePath. The escapes are matched without regard to
// case, and any other percent sequence is left alone.
func DecodePath(path string) string {
	if !strings.Contains(path, "%") {
		return path
	}
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '%' && i+2 < len(path) {
			switch strings.ToUpper(path[i+1 : i+3]) {
			case "25":
				b.WriteByte('%')
				i += 2
				continue
			case "0D":
				b.WriteByte('\r')
				i += 2
				continue
			case "0A":
				b.WriteByte('\n')
				i += 2
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

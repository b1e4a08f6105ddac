package bagit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestManifestRoundtrip(t *testing.T) {
	m := NewManifest("SHA256", false)
	var entries []Entry
	for _, p := range []string{"data/z", "data/a b c", "data/100%", "data/line\nbreak", "data/sub/dir/x"} {
		e := Entry{Path: p, Digest: sha256Test}
		if err := m.Add(e.Path, strings.ToUpper(e.Digest)); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, e)
	}
	if m.Algorithm != "sha256" || m.Filename() != "manifest-sha256.txt" {
		t.Errorf("Received algorithm %s file %s", m.Algorithm, m.Filename())
	}

	var b strings.Builder
	if _, err := m.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	text := b.String()
	m2, err := ParseManifest(m.Filename(), strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(entries, m2.Entries()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	// serializing the parsed manifest gives the same bytes
	b.Reset()
	m2.WriteTo(&b)
	if b.String() != text {
		t.Errorf("Received %q, expected %q", b.String(), text)
	}
	if !strings.Contains(text, " data/100%25\n") || !strings.Contains(text, " data/line%0Abreak\n") {
		t.Errorf("paths not encoded: %q", text)
	}
}

func TestParseManifestTolerant(t *testing.T) {
	input := "# a comment\n" +
		md5Test + "  data/two spaces\r\n" +
		md5Test + " *data/binary\n" +
		md5Test + "\tdata/tab\n" +
		md5Test + " data/trailing \n" +
		md5Test + " data\\sub\\windows.txt\n" +
		"\n\n"
	m, err := ParseManifest("manifest-md5.txt", strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, e := range m.Entries() {
		paths = append(paths, e.Path)
	}
	expected := []string{"data/two spaces", "data/binary", "data/tab", "data/trailing ", "data/sub/windows.txt"}
	if diff := cmp.Diff(expected, paths); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseManifestErrors(t *testing.T) {
	var table = []struct {
		name  string
		input string
		line  int
		cause error
	}{
		{"manifest-md5.txt", "\n" + md5Test + "\n", 2, nil},
		{"manifest-md5.txt", md5Test + " data/a\n" + md5Test + " data/a\n", 2, ErrDuplicatePath},
		{"manifest-md5.txt", md5Test + " /etc/passwd\n", 1, ErrBadPath},
		{"manifest-md5.txt", md5Test + " other/a\n", 1, ErrBadPath},
		{"manifest-md5.txt", "xyz data/a\n", 1, nil},
		{"manifest-sha1.txt", md5Test + " data/a\n", 1, nil},
		{"tagmanifest-md5.txt", md5Test + " ../bagit.txt\n", 1, ErrBadPath},
		{"bagit.txt", "", 0, nil},
	}
	for _, test := range table {
		_, err := ParseManifest(test.name, strings.NewReader(test.input))
		var se *StructuralError
		if !errors.As(err, &se) {
			t.Errorf("%q: received %v, expected a StructuralError", test.input, err)
			continue
		}
		if se.File != test.name || se.Line != test.line {
			t.Errorf("%q: received %s:%d, expected %s:%d", test.input, se.File, se.Line, test.name, test.line)
		}
		if test.cause != nil && !errors.Is(err, test.cause) {
			t.Errorf("%q: received %v, expected %v", test.input, err, test.cause)
		}
	}
}

func TestParseManifestName(t *testing.T) {
	var table = []struct {
		name string
		alg  string
		tag  bool
		ok   bool
	}{
		{"manifest-md5.txt", "md5", false, true},
		{"manifest-SHA256.txt", "sha256", false, true},
		{"tagmanifest-sha512.txt", "sha512", true, true},
		{"manifest-.txt", "", false, false},
		{"manifest-md5", "", false, false},
		{"bag-info.txt", "", false, false},
	}
	for _, test := range table {
		alg, tag, ok := ParseManifestName(test.name)
		if alg != test.alg || tag != test.tag || ok != test.ok {
			t.Errorf("%s: received (%s, %v, %v)", test.name, alg, tag, ok)
		}
	}
}

func TestDecodePath(t *testing.T) {
	var table = []struct {
		input  string
		output string
	}{
		{"data/plain", "data/plain"},
		{"data/%25", "data/%"},
		{"data/a%0d%0Ab", "data/a\r\nb"},
		{"data/%41", "data/%41"},
		{"data/%", "data/%"},
		{"data/%2", "data/%2"},
		{"data/%2525", "data/%25"},
	}
	for _, test := range table {
		out := DecodePath(test.input)
		if out != test.output {
			t.Errorf("%q: received %q, expected %q", test.input, out, test.output)
		}
	}
}

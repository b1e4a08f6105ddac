package bagit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestParseInfo(t *testing.T) {
	input := "Source-Organization: University of Notre Dame\n" +
		"External-Description: a long description\n" +
		"  which continues\r\n" +
		"\tacross lines\n" +
		"\n" +
		"Contact-Name: First\n" +
		"Contact-Name: Second\n" +
		"Empty:\n" +
		"Colons: a: b: c\n"
	info, err := ParseInfo("bag-info.txt", strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	expected := []Field{
		{"Source-Organization", "University of Notre Dame"},
		{"External-Description", "a long description which continues across lines"},
		{"Contact-Name", "First"},
		{"Contact-Name", "Second"},
		{"Empty", ""},
		{"Colons", "a: b: c"},
	}
	if diff := cmp.Diff(expected, info.Fields()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"First", "Second"}, info.Values("Contact-Name")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseInfoErrors(t *testing.T) {
	var table = []struct {
		input string
		line  int
	}{
		{" leading continuation\n", 1},
		{"Good: one\nno colon here\n", 2},
	}
	for _, test := range table {
		_, err := ParseInfo("bag-info.txt", strings.NewReader(test.input))
		var se *StructuralError
		if !errors.As(err, &se) || se.Line != test.line || se.File != "bag-info.txt" {
			t.Errorf("%q: received %v, expected an error on line %d", test.input, err, test.line)
		}
	}
}

func TestInfoRoundtrip(t *testing.T) {
	info := NewInfo(
		Field{"B", "2"},
		Field{"A", "1"},
		Field{"B", "3"},
	)
	info.Set("A", "one")
	info.Add("C", "with\nnewline")
	var b strings.Builder
	if _, err := info.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	expected := "B: 2\nA: one\nB: 3\nC: withnewline\n"
	if b.String() != expected {
		t.Errorf("Received %q, expected %q", b.String(), expected)
	}
	info2, err := ParseInfo("bag-info.txt", strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	want := []Field{{"B", "2"}, {"A", "one"}, {"B", "3"}, {"C", "withnewline"}}
	if diff := cmp.Diff(want, info2.Fields()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestInfoSet(t *testing.T) {
	info := NewInfo(Field{"X", "1"}, Field{"Y", "2"}, Field{"X", "3"})
	info.Set("X", "new")
	expected := []Field{{"X", "new"}, {"Y", "2"}}
	if diff := cmp.Diff(expected, info.Fields()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	info.Set("Z", "appended")
	if v, ok := info.Get("Z"); !ok || v != "appended" || info.Len() != 3 {
		t.Errorf("Received %q %v len %d", v, ok, info.Len())
	}
	clone := info.Clone()
	clone.Add("W", "")
	if info.Has("W") {
		t.Error("Clone shares fields")
	}
	var nilInfo *Info
	if nilInfo.Clone().Len() != 0 {
		t.Error("Clone of nil is not empty")
	}
}

func TestParseFetch(t *testing.T) {
	input := "https://example.com/a 10 data/a\n" +
		"\n" +
		"ftp://example.com/b - data/b%20with spaces\n"
	entries, err := ParseFetch("fetch.txt", strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	expected := []FetchEntry{
		{URL: "https://example.com/a", Length: 10, Path: "data/a"},
		{URL: "ftp://example.com/b", Length: -1, Path: "data/b%20with spaces"},
	}
	if diff := cmp.Diff(expected, entries); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	for _, bad := range []string{"url data/a\n", "url x data/a\n", "url 10 ../a\n"} {
		_, err := ParseFetch("fetch.txt", strings.NewReader(bad))
		var se *StructuralError
		if !errors.As(err, &se) || se.Line != 1 {
			t.Errorf("%q: received %v, expected an error on line 1", bad, err)
		}
	}
}

func TestParseOxum(t *testing.T) {
	var table = []struct {
		input  string
		output Oxum
		ok     bool
	}{
		{"4.2", Oxum{4, 2}, true},
		{" 1000.10 ", Oxum{1000, 10}, true},
		{"0.0", Oxum{0, 0}, true},
		{"4", Oxum{}, false},
		{"4.", Oxum{}, false},
		{"-4.2", Oxum{}, false},
		{"4.2.1", Oxum{}, false},
		{"a.b", Oxum{}, false},
	}
	for _, test := range table {
		ox, err := ParseOxum(test.input)
		if (err == nil) != test.ok || ox != test.output {
			t.Errorf("%q: received %v, %v", test.input, ox, err)
		}
		if test.ok && ox.String() != strings.TrimSpace(test.input) {
			t.Errorf("Received %s, expected %s", ox.String(), test.input)
		}
	}
}

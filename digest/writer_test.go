package digest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestWriter(t *testing.T) {
	const input = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"
	const goalMD5 = "0101fc798d94a730b0f0bf1bd2cc1959"
	const goalSHA256 = "fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658"

	var w = new(bytes.Buffer)
	dw, err := New(w, []string{"md5", "sha256"})
	if err != nil {
		t.Fatal(err)
	}
	dw.Write([]byte(input))
	if w.String() != input {
		t.Errorf("Got %q passed through, expected %q", w.String(), input)
	}
	if h := dw.Sum("md5"); h != goalMD5 {
		t.Errorf("Got %s, expected %s", h, goalMD5)
	}
	if h := dw.Sum("SHA256"); h != goalSHA256 {
		t.Errorf("Got %s, expected %s", h, goalSHA256)
	}
	if h := dw.Sum("sha1"); h != "" {
		t.Errorf("Got %s for an algorithm not computed, expected empty", h)
	}
	if dw.Count() != int64(len(input)) {
		t.Errorf("Got count %d, expected %d", dw.Count(), len(input))
	}
}

func TestReader(t *testing.T) {
	var table = []struct {
		input string
		alg   string
		goal  string
	}{
		{"test", "md5", "098f6bcd4621d373cade4e832627b4f6"},
		{"test", "sha1", "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"},
		{"test", "sha256", "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
		{"", "md5", "d41d8cd98f00b204e9800998ecf8427e"},
		{"", "sha256", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"", "sha512", "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"},
		{"hello", "md5", "5d41402abc4b2a76b9719d911017c592"},
		{"hello", "sha256", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}

	for _, tab := range table {
		sums, n, err := Reader(strings.NewReader(tab.input), []string{tab.alg})
		if err != nil {
			t.Fatal(err)
		}
		if n != int64(len(tab.input)) {
			t.Errorf("%s(%q): read %d bytes, expected %d", tab.alg, tab.input, n, len(tab.input))
		}
		if sums[tab.alg] != tab.goal {
			t.Errorf("%s(%q) = %s, expected %s", tab.alg, tab.input, sums[tab.alg], tab.goal)
		}
	}
}

func TestReaderAllAlgorithms(t *testing.T) {
	sums, _, err := Reader(strings.NewReader("some data"), Supported())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range Supported() {
		h := sums[name]
		if len(h) != HexLen(name) {
			t.Errorf("%s: digest %q has length %d, expected %d", name, h, len(h), HexLen(name))
		}
		if h != strings.ToLower(h) {
			t.Errorf("%s: digest %q is not lowercase", name, h)
		}
	}
}

func TestCheck(t *testing.T) {
	var table = []struct {
		names []string
		goal  error
	}{
		{[]string{"sha256"}, nil},
		{[]string{"md5", "sha1", "sha256", "sha512"}, nil},
		{[]string{"SHA512"}, nil},
		{nil, ErrNoAlgorithms},
		{[]string{"sha256", "crc32"}, ErrUnknownAlgorithm},
		{[]string{"sha256", "Sha256"}, ErrDuplicateAlgorithm},
	}

	for _, tab := range table {
		err := Check(tab.names)
		if errors.Cause(err) != tab.goal {
			t.Errorf("Check(%v) = %v, expected %v", tab.names, err, tab.goal)
		}
	}
}

func TestHexLen(t *testing.T) {
	var table = map[string]int{
		"md5":     32,
		"sha1":    40,
		"sha256":  64,
		"sha512":  128,
		"unknown": 0,
	}
	for name, goal := range table {
		if n := HexLen(name); n != goal {
			t.Errorf("HexLen(%s) = %d, expected %d", name, n, goal)
		}
	}
}

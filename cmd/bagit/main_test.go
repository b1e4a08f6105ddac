package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// run executes the command line with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func makeSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	os.MkdirAll(filepath.Join(src, "sub"), 0755)
	os.WriteFile(filepath.Join(src, "a.txt"), []byte("test"), 0644)
	os.WriteFile(filepath.Join(src, "sub", "b.txt"), nil, 0644)
	return src
}

func TestCreateAndValidate(t *testing.T) {
	src := makeSource(t)
	dst := filepath.Join(t.TempDir(), "mybag")

	out, err := run(t, "create", "-a", "md5", "--algorithm", "sha1",
		"--contact-name", "Nobody", "--tag", "Local-Id: 1234", src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if out != "created "+dst+": 2 files, 4 bytes\n" {
		t.Errorf("Received %q", out)
	}
	for _, name := range []string{"manifest-md5.txt", "manifest-sha1.txt", "tagmanifest-md5.txt"} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Error(err)
		}
	}
	info, _ := os.ReadFile(filepath.Join(dst, "bag-info.txt"))
	for _, line := range []string{"Contact-Name: Nobody\n", "Local-Id: 1234\n", "Payload-Oxum: 4.2\n"} {
		if !strings.Contains(string(info), line) {
			t.Errorf("bag-info.txt missing %q:\n%s", line, info)
		}
	}

	for _, args := range [][]string{{"validate", dst}, {"validate", "--fast", "-p", "3", dst}} {
		out, err = run(t, args...)
		if err != nil {
			t.Errorf("%v: %v", args, err)
		}
		if out != dst+" is valid\n" {
			t.Errorf("%v: received %q", args, out)
		}
	}

	os.WriteFile(filepath.Join(dst, "data", "extra"), []byte("x"), 0644)
	out, err = run(t, "validate", dst)
	if err != errInvalid {
		t.Errorf("Received %v, expected %v", err, errInvalid)
	}
	expected := dst + " is invalid: 1 problems\ndata/extra exists on filesystem but is not in manifest\n"
	if out != expected {
		t.Errorf("Received %q, expected %q", out, expected)
	}
}

func TestCreateZipAndList(t *testing.T) {
	src := makeSource(t)
	storeDir := t.TempDir()
	config := writeConfig(t, "algorithms = [\"sha256\"]\n\n[[metadata]]\nname = \"Contact-Name\"\nvalue = \"From Config\"\n")

	if _, err := run(t, "--config", config, "create", "--zip-store", storeDir, src, "zipped"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "list", storeDir)
	if err != nil {
		t.Fatal(err)
	}
	if out != "zipped.zip\n" {
		t.Errorf("Received %q", out)
	}
	out, err = run(t, "list", storeDir, "nothing")
	if err != nil || out != "" {
		t.Errorf("Received %q, %v", out, err)
	}

	zipped := filepath.Join(storeDir, "zipped.zip")
	out, err = run(t, "validate", zipped)
	if err != nil {
		t.Fatal(err)
	}
	if out != zipped+" is valid\n" {
		t.Errorf("Received %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	src := makeSource(t)
	var table = [][]string{
		{"create", "-a", "whirlpool", src, filepath.Join(t.TempDir(), "bag")},
		{"create", "-p", "0", src, filepath.Join(t.TempDir(), "bag")},
		{"create", "--tag", "nocolon", src, filepath.Join(t.TempDir(), "bag")},
		{"create", src},
		{"validate"},
		{"--config", "/does/not/exist.toml", "validate", src},
	}
	for _, args := range table {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}

	// a directory which is not a bag could not be checked
	_, err := run(t, "validate", src)
	if !errors.Is(err, errInvalid) {
		t.Errorf("Received %v, expected %v", err, errInvalid)
	}
}

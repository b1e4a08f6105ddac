package bagit

import (
	"io/fs"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Oxum summarizes a payload as its total size and number of files. Its text
// form is "<bytes>.<files>", as in the Payload-Oxum tag.
type Oxum struct {
	Bytes int64
	Files int64
}

func (ox Oxum) String() string {
	return strconv.FormatInt(ox.Bytes, 10) + "." + strconv.FormatInt(ox.Files, 10)
}

// ParseOxum parses the text form of an Oxum.
func ParseOxum(s string) (Oxum, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 2)
	if len(parts) != 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return Oxum{}, errors.Errorf("invalid oxum %q", s)
	}
	b, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Oxum{}, errors.Wrapf(err, "invalid oxum %q", s)
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Oxum{}, errors.Wrapf(err, "invalid oxum %q", s)
	}
	return Oxum{Bytes: b, Files: n}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// payloadOxum totals the files under the payload directory of fsys. Only
// directory metadata is consulted; no file is opened.
func payloadOxum(fsys fs.FS) (Oxum, error) {
	var ox Oxum
	err := walkPayload(fsys, func(p string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			return &StructuralError{Path: p, Err: err}
		}
		ox.Bytes += info.Size()
		ox.Files++
		return nil
	})
	return ox, err
}

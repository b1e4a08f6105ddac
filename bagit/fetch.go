package bagit

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FetchEntry is one line of a fetch.txt: a payload file which is to be
// retrieved from a URL rather than being carried in the bag.
type FetchEntry struct {
	URL    string
	Length int64 // -1 if given as "-"
	Path   string
}

// ParseFetch reads a fetch.txt. Each non-blank line is "<url> <length>
// <path>", where length may be "-" if unknown.
func ParseFetch(name string, r io.Reader) ([]FetchEntry, error) {
	var result []FetchEntry
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, &StructuralError{File: name, Line: lineno, Err: errors.New("expected url, length, and path")}
		}
		entry := FetchEntry{URL: parts[0], Length: -1, Path: DecodePath(strings.TrimSpace(parts[2]))}
		if parts[1] != "-" {
			n, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil || n < 0 {
				return nil, &StructuralError{File: name, Line: lineno, Err: errors.Errorf("invalid length %q", parts[1])}
			}
			entry.Length = n
		}
		if err := checkPath(entry.Path, false); err != nil {
			return nil, &StructuralError{File: name, Line: lineno, Err: err}
		}
		result = append(result, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, &StructuralError{File: name, Line: lineno + 1, Err: err}
	}
	return result, nil
}

package bagit

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Field is one "Name: value" line of a tag file.
type Field struct {
	Name  string
	Value string
}

// Info is the ordered contents of a tag file such as bag-info.txt. A name may
// appear more than once, and every occurrence is kept in its place. Values
// are opaque to this package except for the few tags it writes itself.
type Info struct {
	fields []Field
}

// NewInfo returns an Info holding the given fields in order.
func NewInfo(fields ...Field) *Info {
	info := &Info{}
	for _, f := range fields {
		info.Add(f.Name, f.Value)
	}
	return info
}

// Add appends a field, even if one with the same name already exists.
func (info *Info) Add(name, value string) {
	info.fields = append(info.fields, Field{Name: name, Value: value})
}

// Set replaces the value of the first field called name and removes any
// later ones. If there is no such field it is appended.
func (info *Info) Set(name, value string) {
	var result []Field
	found := false
	for _, f := range info.fields {
		if f.Name != name {
			result = append(result, f)
			continue
		}
		if !found {
			found = true
			result = append(result, Field{Name: name, Value: value})
		}
	}
	if !found {
		result = append(result, Field{Name: name, Value: value})
	}
	info.fields = result
}

// Get returns the value of the first field called name.
func (info *Info) Get(name string) (string, bool) {
	for _, f := range info.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns the values of every field called name, in order.
func (info *Info) Values(name string) []string {
	var result []string
	for _, f := range info.fields {
		if f.Name == name {
			result = append(result, f.Value)
		}
	}
	return result
}

// Has returns true if there is at least one field called name.
func (info *Info) Has(name string) bool {
	_, ok := info.Get(name)
	return ok
}

// Fields returns a copy of the fields in order.
func (info *Info) Fields() []Field {
	result := make([]Field, len(info.fields))
	copy(result, info.fields)
	return result
}

// Len returns the number of fields.
func (info *Info) Len() int {
	return len(info.fields)
}

// Clone returns an independent copy.
func (info *Info) Clone() *Info {
	if info == nil {
		return &Info{}
	}
	return &Info{fields: info.Fields()}
}

// WriteTo serializes the fields, one "Name: value\n" line each. Carriage
// returns and line feeds in values are dropped so they cannot break the
// file's structure. Values are not wrapped.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, f := range info.fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(stripNewlines.Replace(f.Value))
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

var stripNewlines = strings.NewReplacer("\r\n", "", "\r", "", "\n", "")

const bom = "\ufeff"

// ParseInfo reads a tag file following the RFC 2822 style used by BagIt. Each
// field is a name, a colon, and a value. A line beginning with a space or tab
// continues the previous value, and is joined to it by a single space. Blank
// lines are skipped, and a byte order mark at the start is ignored. A line
// without a colon is a *StructuralError naming the file and line.
func ParseInfo(name string, r io.Reader) (*Info, error) {
	info := &Info{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if lineno == 1 {
			line = strings.TrimPrefix(line, bom)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(info.fields) == 0 {
				return nil, &StructuralError{File: name, Line: lineno, Err: errors.New("continuation line without a tag")}
			}
			last := &info.fields[len(info.fields)-1]
			if last.Value == "" {
				last.Value = strings.TrimSpace(line)
			} else {
				last.Value += " " + strings.TrimSpace(line)
			}
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			return nil, &StructuralError{File: name, Line: lineno, Err: errors.Errorf("invalid line %q", line)}
		}
		info.Add(strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]))
	}
	if err := scanner.Err(); err != nil {
		return nil, &StructuralError{File: name, Line: lineno + 1, Err: err}
	}
	return info, nil
}

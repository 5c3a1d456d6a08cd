// Package blockfile is the line/block scanner shared by the fstab and
// smb.conf stores.
//
// Both files are edited by locating a small region (a managed fstab entry
// with its marker comment, an INI share section) and splicing lines, leaving
// every byte outside the region untouched. The Document type is that shared
// mechanic; the grammar-specific parts (what a header is, what a key line
// is) come in as functions.
package blockfile

import "strings"

// Document holds a config file as lines without terminators, remembering
// whether the original ended with a newline so Render round-trips
// byte-for-byte.
type Document struct {
	lines           []string
	trailingNewline bool
}

// Parse splits file contents into a Document.
func Parse(data []byte) *Document {
	s := string(data)
	if s == "" {
		return &Document{trailingNewline: true}
	}
	trailing := strings.HasSuffix(s, "\n")
	if trailing {
		s = s[:len(s)-1]
	}
	return &Document{lines: strings.Split(s, "\n"), trailingNewline: trailing}
}

// Render reassembles the file contents.
func (d *Document) Render() []byte {
	if len(d.lines) == 0 {
		return nil
	}
	out := strings.Join(d.lines, "\n")
	if d.trailingNewline {
		out += "\n"
	}
	return []byte(out)
}

// Len returns the number of lines.
func (d *Document) Len() int { return len(d.lines) }

// Line returns line i verbatim.
func (d *Document) Line(i int) string { return d.lines[i] }

// Lines returns the backing slice; callers must not mutate it.
func (d *Document) Lines() []string { return d.lines }

// Append adds lines at the end of the document.
func (d *Document) Append(lines ...string) {
	d.lines = append(d.lines, lines...)
	d.trailingNewline = true
}

// Insert places lines before index i.
func (d *Document) Insert(i int, lines ...string) {
	d.lines = append(d.lines[:i], append(append([]string{}, lines...), d.lines[i:]...)...)
}

// Set replaces line i.
func (d *Document) Set(i int, line string) { d.lines[i] = line }

// Remove deletes line i.
func (d *Document) Remove(i int) {
	d.lines = append(d.lines[:i], d.lines[i+1:]...)
}

// RemoveRange deletes the half-open line range [start, end).
func (d *Document) RemoveRange(r Range) {
	d.lines = append(d.lines[:r.Start], d.lines[r.End:]...)
}

// Range is a half-open [Start, End) line interval.
type Range struct {
	Start, End int
}

// Section is a named block: a header line plus everything up to the next
// header or end of file.
type Section struct {
	Name string
	Range
}

// HeaderFunc recognizes a block header line and extracts its name.
type HeaderFunc func(line string) (name string, ok bool)

// Sections scans the whole document and returns its blocks in order.
func (d *Document) Sections(isHeader HeaderFunc) []Section {
	var secs []Section
	start := -1
	name := ""
	for i, raw := range d.lines {
		if n, ok := isHeader(strings.TrimSpace(raw)); ok {
			if start >= 0 {
				secs = append(secs, Section{Name: name, Range: Range{Start: start, End: i}})
			}
			start, name = i, n
		}
	}
	if start >= 0 {
		secs = append(secs, Section{Name: name, Range: Range{Start: start, End: len(d.lines)}})
	}
	return secs
}

// FindLine returns the index of the first line matching pred, or -1.
func (d *Document) FindLine(pred func(line string) bool) int {
	for i, raw := range d.lines {
		if pred(raw) {
			return i
		}
	}
	return -1
}

// Indent returns the leading whitespace of a line, for edits that must keep
// the original indentation.
func Indent(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

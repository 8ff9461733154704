package tomledit

import (
	"sort"
	"strings"
)

// Document is a lossless TOML file: an ordered sequence of table blocks, the
// first of which holds any top-level key/value pairs. Serializing an
// unmodified document reproduces the original bytes; edits touch only the
// spans they name.
type Document struct {
	name    string
	blocks  []*Table
	trailer string
}

// Table is one block of the document: the implicit root block, a `[table]`,
// or one element of a `[[table]]` array.
type Table struct {
	doc     *Document
	trivia  string // comments and blank lines preceding the header
	header  string // raw header line; empty for the root block
	path    []string
	array   bool
	created bool // true when the table was added after parsing
	sorted  bool
	entries []*Entry
}

// Entry is a single key/value pair with its surrounding trivia.
type Entry struct {
	trivia string // leading whitespace and comment lines
	rawKey string
	key    []string
	eq     string
	val    *Value
	suffix string // trailing spaces, comment, and newline
}

// Key returns the entry's decoded key segments.
func (e *Entry) Key() []string { return e.key }

// Value returns the entry's value.
func (e *Entry) Value() *Value { return e.val }

// SetValue replaces the entry's value, leaving its key and trivia as is.
func (e *Entry) SetValue(v *Value) { e.val = v }

// Name returns the document's file name as given to Parse.
func (d *Document) Name() string { return d.name }

// Serialize renders the document back to bytes.
func (d *Document) Serialize() []byte {
	var sb strings.Builder
	for _, b := range d.blocks {
		sb.WriteString(b.trivia)
		sb.WriteString(b.header)
		for _, e := range b.entries {
			sb.WriteString(e.trivia)
			sb.WriteString(e.rawKey)
			sb.WriteString(e.eq)
			sb.WriteString(e.val.raw)
			sb.WriteString(e.suffix)
		}
	}
	sb.WriteString(d.trailer)
	return []byte(sb.String())
}

// Root returns the implicit top-level block.
func (d *Document) Root() *Table { return d.blocks[0] }

// Table returns the named table block, or nil when absent. Array-of-table
// blocks are not returned; use ArrayTables for those.
func (d *Document) Table(path ...string) *Table {
	for _, b := range d.blocks[1:] {
		if !b.array && pathEqual(b.path, path) {
			return b
		}
	}
	return nil
}

// Tables returns every non-array table block in file order, excluding the
// root block.
func (d *Document) Tables() []*Table {
	out := make([]*Table, 0, len(d.blocks)-1)
	for _, b := range d.blocks[1:] {
		if !b.array {
			out = append(out, b)
		}
	}
	return out
}

// ArrayTables returns all `[[path]]` blocks in file order.
func (d *Document) ArrayTables(path ...string) []*Table {
	var out []*Table
	for _, b := range d.blocks[1:] {
		if b.array && pathEqual(b.path, path) {
			out = append(out, b)
		}
	}
	return out
}

// EnsureTable returns the named table, creating it when missing. A created
// table uses the `[a.b]` header form and is placed after the last block that
// shares its leading path segment, falling back to the end of the document.
func (d *Document) EnsureTable(path ...string) *Table {
	if t := d.Table(path...); t != nil {
		return t
	}
	segs := make([]string, len(path))
	for i, s := range path {
		segs[i] = formatKey(s)
	}
	t := &Table{
		doc:     d,
		header:  "[" + strings.Join(segs, ".") + "]\n",
		path:    append([]string(nil), path...),
		created: true,
		sorted:  true,
	}
	if len(d.Serialize()) > 0 {
		t.trivia = "\n"
	}
	at := len(d.blocks)
	for i := len(d.blocks) - 1; i >= 1; i-- {
		if len(d.blocks[i].path) > 0 && d.blocks[i].path[0] == path[0] {
			at = i + 1
			break
		}
	}
	d.terminateBlock(at - 1)
	d.blocks = append(d.blocks[:at], append([]*Table{t}, d.blocks[at:]...)...)
	return t
}

// RemoveTable deletes a table block and reports whether it was present.
func (d *Document) RemoveTable(t *Table) bool {
	for i, b := range d.blocks[1:] {
		if b == t {
			d.blocks = append(d.blocks[:i+1], d.blocks[i+2:]...)
			return true
		}
	}
	return false
}

// terminateBlock makes sure the block at index i ends with a newline so that
// a following block starts on a fresh line.
func (d *Document) terminateBlock(i int) {
	if i < 0 || i >= len(d.blocks) {
		return
	}
	b := d.blocks[i]
	if n := len(b.entries); n > 0 {
		last := b.entries[n-1]
		if !strings.HasSuffix(last.suffix, "\n") {
			last.suffix += "\n"
		}
		return
	}
	if b.header != "" && !strings.HasSuffix(b.header, "\n") {
		b.header += "\n"
	}
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Path returns the table's header path; nil for the root block.
func (t *Table) Path() []string { return t.path }

// Name returns the dotted form of the table path.
func (t *Table) Name() string { return strings.Join(t.path, ".") }

// IsArray reports whether the block is part of a `[[table]]` array.
func (t *Table) IsArray() bool { return t.array }

// Created reports whether the table was added after parsing rather than
// read from the source.
func (t *Table) Created() bool { return t.created }

// Len returns the number of entries directly in this block.
func (t *Table) Len() int { return len(t.entries) }

// Keys returns the leading key segment of each entry in source order.
func (t *Table) Keys() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.key[0])
	}
	return out
}

// Entries returns this block's entries in source order.
func (t *Table) Entries() []*Entry { return t.entries }

// Get returns the value stored under a single-segment key, or nil.
func (t *Table) Get(key string) *Value {
	for _, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			return e.val
		}
	}
	return nil
}

// GetPath resolves a multi-segment key against this block: either a dotted
// entry with the exact path, or a chain of inline tables.
func (t *Table) GetPath(path ...string) *Value {
	for _, e := range t.entries {
		if pathEqual(e.key, path) {
			return e.val
		}
		if len(e.key) < len(path) && pathEqual(e.key, path[:len(e.key)]) {
			v := e.val
			rest := path[len(e.key):]
			for _, seg := range rest {
				if v == nil || v.kind != KindInlineTable {
					v = nil
					break
				}
				v = v.Field(seg)
			}
			if v != nil {
				return v
			}
		}
	}
	return nil
}

// GetString returns the decoded string under key, or "".
func (t *Table) GetString(key string) string {
	if v := t.Get(key); v != nil {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return ""
}

// Set writes a value under a single-segment key. An existing entry keeps its
// key spelling, spacing, and trailing comment; only the value span changes.
// A new key is inserted in sorted position when the block's keys were already
// sorted, and appended otherwise.
func (t *Table) Set(key string, v *Value) {
	for _, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			e.val = v
			return
		}
	}
	ent := &Entry{
		rawKey: formatKey(key),
		key:    []string{key},
		eq:     " = ",
		val:    v,
		suffix: "\n",
	}
	at := len(t.entries)
	if t.sorted {
		at = sort.Search(len(t.entries), func(i int) bool {
			return t.entries[i].key[0] > key
		})
	}
	if at == len(t.entries) && at > 0 {
		prev := t.entries[at-1]
		if !strings.HasSuffix(prev.suffix, "\n") {
			prev.suffix += "\n"
		}
	}
	t.entries = append(t.entries[:at], append([]*Entry{ent}, t.entries[at:]...)...)
}

// SetPath writes a value under a multi-segment dotted key. An existing entry
// with the exact path keeps its key spelling; only the value span changes. A
// new entry is inserted after the last entry sharing the leading segment, and
// appended otherwise.
func (t *Table) SetPath(path []string, v *Value) {
	for _, e := range t.entries {
		if pathEqual(e.key, path) {
			e.val = v
			return
		}
	}
	segs := make([]string, len(path))
	for i, s := range path {
		segs[i] = formatKey(s)
	}
	ent := &Entry{
		rawKey: strings.Join(segs, "."),
		key:    append([]string(nil), path...),
		eq:     " = ",
		val:    v,
		suffix: "\n",
	}
	at := len(t.entries)
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].key[0] == path[0] {
			at = i + 1
			break
		}
	}
	if at == len(t.entries) && at > 0 {
		prev := t.entries[at-1]
		if !strings.HasSuffix(prev.suffix, "\n") {
			prev.suffix += "\n"
		}
	}
	t.entries = append(t.entries[:at], append([]*Entry{ent}, t.entries[at:]...)...)
}

// RemovePath deletes the entry stored under the exact dotted key path and
// reports whether it was present.
func (t *Table) RemovePath(path ...string) bool {
	for i, e := range t.entries {
		if pathEqual(e.key, path) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Remove deletes the entry under a single-segment key and reports whether it
// was present.
func (t *Table) Remove(key string) bool {
	for i, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

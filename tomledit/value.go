package tomledit

import (
	"strconv"
	"strings"
)

// Kind discriminates the value forms a document can hold.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindDatetime
	KindArray
	KindInlineTable
)

// Value is a single TOML value. The original source text is retained so that
// serialization reproduces untouched values byte for byte.
type Value struct {
	kind Kind
	raw  string

	str  string // decoded form for KindString
	b    bool   // for KindBool
	i    int64  // for KindInteger

	items  []*arrayItem   // for KindArray
	tail   string         // trivia before the closing bracket/brace
	fields []*inlineEntry // for KindInlineTable
}

type arrayItem struct {
	pre  string // trivia before the value (may span lines)
	val  *Value
	post string // trivia after the value, including the comma if present
}

type inlineEntry struct {
	pre    string
	rawKey string
	key    string
	eq     string
	val    *Value
	post   string // trivia after the value, including the comma if present
}

// Kind reports the value's form.
func (v *Value) Kind() Kind { return v.kind }

// Raw returns the value's source text.
func (v *Value) Raw() string { return v.raw }

// AsString returns the decoded string and whether the value is a string.
func (v *Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the boolean value and whether the value is a bool.
func (v *Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer value and whether the value is an integer.
func (v *Value) AsInt() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// NewString builds a basic-quoted string value.
func NewString(s string) *Value {
	return &Value{kind: KindString, raw: quoteBasic(s), str: s}
}

// NewBool builds a boolean value.
func NewBool(b bool) *Value {
	return &Value{kind: KindBool, raw: strconv.FormatBool(b), b: b}
}

// NewInteger builds an integer value.
func NewInteger(i int64) *Value {
	return &Value{kind: KindInteger, raw: strconv.FormatInt(i, 10), i: i}
}

// NewArray builds a single-line array of the given values.
func NewArray(vals ...*Value) *Value {
	v := &Value{kind: KindArray}
	for i, e := range vals {
		item := &arrayItem{val: e}
		if i > 0 {
			item.pre = " "
		}
		if i < len(vals)-1 {
			item.post = ","
		}
		v.items = append(v.items, item)
	}
	v.rebuild()
	return v
}

// NewStringArray builds a single-line array of basic-quoted strings.
func NewStringArray(ss ...string) *Value {
	vals := make([]*Value, 0, len(ss))
	for _, s := range ss {
		vals = append(vals, NewString(s))
	}
	return NewArray(vals...)
}

// NewInlineTable builds an empty inline table. Populate it with SetField.
func NewInlineTable() *Value {
	v := &Value{kind: KindInlineTable}
	v.rebuild()
	return v
}

// Items returns the element values of an array, nil for other kinds.
func (v *Value) Items() []*Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]*Value, 0, len(v.items))
	for _, it := range v.items {
		out = append(out, it.val)
	}
	return out
}

// Strings returns the decoded string elements of an array of strings.
func (v *Value) Strings() []string {
	var out []string
	for _, e := range v.Items() {
		if s, ok := e.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Append adds a value to the end of an array, preserving the existing
// elements' formatting.
func (v *Value) Append(e *Value) {
	if v.kind != KindArray {
		return
	}
	item := &arrayItem{val: e}
	if n := len(v.items); n > 0 {
		last := v.items[n-1]
		if !strings.Contains(last.post, ",") {
			last.post = "," + last.post
		}
		if strings.Contains(last.pre, "\n") || strings.Contains(last.post, "\n") {
			item.pre = last.pre
		} else {
			item.pre = " "
		}
	}
	v.items = append(v.items, item)
	v.rebuild()
}

// Filter removes array elements for which keep returns false and reports
// whether anything was removed.
func (v *Value) Filter(keep func(*Value) bool) bool {
	if v.kind != KindArray {
		return false
	}
	kept := v.items[:0]
	removed := false
	for _, it := range v.items {
		if keep(it.val) {
			kept = append(kept, it)
		} else {
			removed = true
		}
	}
	if !removed {
		return false
	}
	v.items = append([]*arrayItem(nil), kept...)
	if n := len(v.items); n > 0 {
		// The new last element must not retain a dangling separator on a
		// single-line array.
		last := v.items[n-1]
		if !strings.Contains(last.post, "\n") {
			last.post = strings.Replace(last.post, ",", "", 1)
		}
	}
	v.rebuild()
	return true
}

// Len returns the number of elements or fields in a composite value.
func (v *Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindInlineTable:
		return len(v.fields)
	default:
		return 0
	}
}

// Field returns the value of an inline-table field, or nil.
func (v *Value) Field(key string) *Value {
	if v.kind != KindInlineTable {
		return nil
	}
	for _, f := range v.fields {
		if f.key == key {
			return f.val
		}
	}
	return nil
}

// FieldKeys returns the inline-table field names in source order.
func (v *Value) FieldKeys() []string {
	if v.kind != KindInlineTable {
		return nil
	}
	out := make([]string, 0, len(v.fields))
	for _, f := range v.fields {
		out = append(out, f.key)
	}
	return out
}

// SetField sets an inline-table field, rewriting only that field's value when
// it already exists and appending it otherwise.
func (v *Value) SetField(key string, val *Value) {
	if v.kind != KindInlineTable {
		return
	}
	for _, f := range v.fields {
		if f.key == key {
			f.val = val
			v.rebuild()
			return
		}
	}
	f := &inlineEntry{rawKey: formatKey(key), key: key, eq: " = ", val: val, pre: " "}
	if n := len(v.fields); n > 0 {
		v.fields[n-1].post = ","
	} else {
		f.pre = " "
	}
	if v.tail == "" {
		f.post = " "
	}
	v.fields = append(v.fields, f)
	v.rebuild()
}

// RemoveField deletes an inline-table field and reports whether it existed.
func (v *Value) RemoveField(key string) bool {
	if v.kind != KindInlineTable {
		return false
	}
	for i, f := range v.fields {
		if f.key == key {
			v.fields = append(v.fields[:i], v.fields[i+1:]...)
			if n := len(v.fields); n > 0 && i == n {
				// The removed field carried the padding before the closing
				// brace; the surviving last field inherits it in place of
				// its separator.
				last := v.fields[n-1]
				last.post = strings.Replace(last.post, ",", "", 1) + f.post
			}
			v.rebuild()
			return true
		}
	}
	return false
}

// rebuild recomputes the raw text of a composite value from its parts.
// Scalar raw text is immutable once constructed.
func (v *Value) rebuild() {
	switch v.kind {
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for _, it := range v.items {
			sb.WriteString(it.pre)
			sb.WriteString(it.val.raw)
			sb.WriteString(it.post)
		}
		sb.WriteString(v.tail)
		sb.WriteByte(']')
		v.raw = sb.String()
	case KindInlineTable:
		var sb strings.Builder
		sb.WriteByte('{')
		for _, f := range v.fields {
			sb.WriteString(f.pre)
			sb.WriteString(f.rawKey)
			sb.WriteString(f.eq)
			sb.WriteString(f.val.raw)
			sb.WriteString(f.post)
		}
		sb.WriteString(v.tail)
		sb.WriteByte('}')
		v.raw = sb.String()
	}
}

// quoteBasic renders s as a TOML basic string.
func quoteBasic(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func isBareKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// formatKey renders a key segment, quoting it when it is not a bare key.
func formatKey(s string) string {
	if isBareKey(s) {
		return s
	}
	return quoteBasic(s)
}

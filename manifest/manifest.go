// Package manifest reads and edits Cargo.toml files while preserving their
// formatting. Edits rewrite only the spans they name; untouched entries,
// comments, and whitespace survive byte for byte.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cassaundra/cargo-edit/tomledit"
)

// Filename is the manifest file name Cargo looks for.
const Filename = "Cargo.toml"

// Document is one manifest file and its parsed, format-preserving tree.
type Document struct {
	path string
	doc  *tomledit.Document
}

// Load reads and parses the manifest at path. A directory path is resolved
// to the Cargo.toml inside it.
func Load(path string) (*Document, error) {
	if filepath.Base(path) != Filename {
		path = filepath.Join(path, Filename)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse parses manifest content. The name is used for error positions and
// as the document path.
func Parse(name string, data []byte) (*Document, error) {
	doc, err := tomledit.Parse(name, data)
	if err != nil {
		return nil, err
	}
	return &Document{path: name, doc: doc}, nil
}

// Path returns the manifest's file path.
func (m *Document) Path() string { return m.path }

// Dir returns the directory containing the manifest.
func (m *Document) Dir() string { return filepath.Dir(m.path) }

// Bytes serializes the manifest.
func (m *Document) Bytes() []byte { return m.doc.Serialize() }

// PackageName returns the `[package] name`, or "" for a virtual manifest.
func (m *Document) PackageName() string {
	if t := m.doc.Table("package"); t != nil {
		return t.GetString("name")
	}
	return ""
}

// PackageVersion returns the `[package] version`, or "".
func (m *Document) PackageVersion() string {
	if t := m.doc.Table("package"); t != nil {
		return t.GetString("version")
	}
	return ""
}

// SetPackageVersion rewrites the `[package] version` value in place.
func (m *Document) SetPackageVersion(version string) {
	m.doc.EnsureTable("package").Set("version", tomledit.NewString(version))
}

// WorkspaceMembers returns the `[workspace] members` patterns, and ok=false
// when the manifest has no workspace section.
func (m *Document) WorkspaceMembers() (members, exclude []string, ok bool) {
	t := m.doc.Table("workspace")
	if t == nil {
		return nil, nil, false
	}
	if v := t.Get("members"); v != nil {
		members = v.Strings()
	}
	if v := t.Get("exclude"); v != nil {
		exclude = v.Strings()
	}
	return members, exclude, true
}

// Sections returns every dependency section present in the manifest, in
// file order and without duplicates.
func (m *Document) Sections() []Section {
	var out []Section
	seen := make(map[Section]bool)
	add := func(s Section) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, t := range m.doc.Tables() {
		if s, ok := sectionFromPath(t.Path()); ok {
			add(s)
			continue
		}
		// A `[dependencies.foo]` block implies its parent section.
		if p := t.Path(); len(p) > 1 {
			if s, ok := sectionFromPath(p[:len(p)-1]); ok {
				add(s)
			}
		}
	}
	return out
}

// DepEntry is one dependency table entry: its key and either the decoded
// dependency or the reason it could not be decoded.
type DepEntry struct {
	Key string
	Dep *Dependency
	Err error
}

// Dependencies returns the entries of one dependency section in file order.
func (m *Document) Dependencies(sec Section) []DepEntry {
	var out []DepEntry
	secPath := sec.TablePath()
	if t := m.doc.Table(secPath...); t != nil {
		grouped := make(map[string]bool)
		for _, e := range t.Entries() {
			key := e.Key()[0]
			if len(e.Key()) > 1 {
				// Dotted entries like `serde.version = "1"` form one logical
				// dependency per leading segment.
				if grouped[key] {
					continue
				}
				grouped[key] = true
				out = append(out, m.dottedEntry(t, key, sec))
				continue
			}
			dep, err := decodeDependency(key, e.Value(), sec)
			out = append(out, DepEntry{Key: key, Dep: dep, Err: err})
		}
	}
	for _, t := range m.doc.Tables() {
		p := t.Path()
		if len(p) == len(secPath)+1 && pathHasPrefix(p, secPath) {
			key := p[len(p)-1]
			dep, err := decodeTableDependency(key, t, sec)
			out = append(out, DepEntry{Key: key, Dep: dep, Err: err})
		}
	}
	return out
}

func (m *Document) dottedEntry(t *tomledit.Table, key string, sec Section) DepEntry {
	d := &Dependency{Name: key, DefaultFeatures: true, Section: sec}
	for _, e := range t.Entries() {
		if e.Key()[0] != key || len(e.Key()) != 2 {
			continue
		}
		if err := d.decodeField(key, e.Key()[1], e.Value()); err != nil {
			return DepEntry{Key: key, Err: err}
		}
	}
	return DepEntry{Key: key, Dep: d}
}

func pathHasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// GetDependency returns the decoded dependency stored under key in the
// given section, or nil when absent.
func (m *Document) GetDependency(sec Section, key string) (*Dependency, error) {
	for _, e := range m.Dependencies(sec) {
		if e.Key == key {
			return e.Dep, e.Err
		}
	}
	return nil, nil
}

// FindDependency looks for key across all sections, returning the first hit
// in section order.
func (m *Document) FindDependency(key string) (*Dependency, error) {
	for _, sec := range m.Sections() {
		if d, err := m.GetDependency(sec, key); d != nil || err != nil {
			return d, err
		}
	}
	return nil, nil
}

// SetDependency writes a dependency into its section, merging with any
// existing entry: only changed fields are rewritten, unknown fields and the
// entry's placement are preserved. A new entry is inserted in sorted
// position when the table is key-sorted, and appended otherwise.
func (m *Document) SetDependency(d *Dependency) {
	key := d.TomlKey()
	secPath := d.Section.TablePath()

	if sub := m.doc.Table(append(append([]string{}, secPath...), key)...); sub != nil {
		m.mergeTable(sub, d)
		return
	}

	tbl := m.doc.EnsureTable(secPath...)
	existing := tbl.Get(key)
	if existing == nil && hasDotted(tbl, key) {
		m.mergeDotted(tbl, key, d)
		return
	}
	switch {
	case existing == nil:
		if d.simple() {
			tbl.Set(key, tomledit.NewString(d.Req))
		} else {
			tbl.Set(key, d.encodeInline())
		}
	case existing.Kind() == tomledit.KindString:
		if d.simple() {
			if s, _ := existing.AsString(); s != d.Req {
				tbl.Set(key, tomledit.NewString(d.Req))
			}
		} else {
			tbl.Set(key, d.encodeInline())
		}
	case existing.Kind() == tomledit.KindInlineTable:
		m.mergeInline(existing, d)
		if keys := existing.FieldKeys(); len(keys) == 1 && keys[0] == "version" && d.simple() {
			tbl.Set(key, tomledit.NewString(d.Req))
		}
	default:
		tbl.Set(key, d.encodeInline())
	}
}

// fieldAlias maps a canonical field name to the spelling present in the
// existing entry, so merges respect the author's choice.
func fieldAlias(keys []string, field string) string {
	if field == "default-features" {
		for _, k := range keys {
			if k == "default_features" {
				return k
			}
		}
	}
	return field
}

func (m *Document) mergeInline(v *tomledit.Value, d *Dependency) {
	for _, field := range canonicalFieldOrder {
		name := fieldAlias(v.FieldKeys(), field)
		desired := d.fieldValue(field)
		cur := v.Field(name)
		switch {
		case desired == nil && cur != nil:
			v.RemoveField(name)
		case desired != nil && cur == nil:
			v.SetField(name, desired)
		case desired != nil && !valueEqual(cur, desired):
			v.SetField(name, desired)
		}
	}
}

// mergeDotted applies a dependency to an entry written with dotted keys
// (`serde.version = "1"`), rewriting only the `key.field` pairs that changed
// so no duplicate of key is ever introduced.
func (m *Document) mergeDotted(t *tomledit.Table, key string, d *Dependency) {
	for _, field := range canonicalFieldOrder {
		name := fieldAlias(dottedFields(t, key), field)
		desired := d.fieldValue(field)
		cur := dottedValue(t, key, name)
		switch {
		case desired == nil && cur != nil:
			t.RemovePath(key, name)
		case desired != nil && cur == nil:
			t.SetPath([]string{key, name}, desired)
		case desired != nil && !valueEqual(cur, desired):
			t.SetPath([]string{key, name}, desired)
		}
	}
}

func hasDotted(t *tomledit.Table, key string) bool {
	for _, e := range t.Entries() {
		if k := e.Key(); len(k) > 1 && k[0] == key {
			return true
		}
	}
	return false
}

func dottedFields(t *tomledit.Table, key string) []string {
	var out []string
	for _, e := range t.Entries() {
		if k := e.Key(); len(k) == 2 && k[0] == key {
			out = append(out, k[1])
		}
	}
	return out
}

func dottedValue(t *tomledit.Table, key, field string) *tomledit.Value {
	for _, e := range t.Entries() {
		if k := e.Key(); len(k) == 2 && k[0] == key && k[1] == field {
			return e.Value()
		}
	}
	return nil
}

func (m *Document) mergeTable(t *tomledit.Table, d *Dependency) {
	for _, field := range canonicalFieldOrder {
		name := fieldAlias(t.Keys(), field)
		desired := d.fieldValue(field)
		cur := t.Get(name)
		switch {
		case desired == nil && cur != nil:
			t.Remove(name)
		case desired != nil && cur == nil:
			t.Set(name, desired)
		case desired != nil && !valueEqual(cur, desired):
			t.Set(name, desired)
		}
	}
}

func valueEqual(a, b *tomledit.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case tomledit.KindArray:
		as, bs := a.Strings(), b.Strings()
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	default:
		return a.Raw() == b.Raw()
	}
}

// SetDependencyReq rewrites only the version requirement of an existing
// entry, leaving every other field and its formatting untouched. It reports
// whether the entry was found.
func (m *Document) SetDependencyReq(sec Section, key, req string) bool {
	secPath := sec.TablePath()
	if sub := m.doc.Table(append(append([]string{}, secPath...), key)...); sub != nil {
		sub.Set("version", tomledit.NewString(req))
		return true
	}
	t := m.doc.Table(secPath...)
	if t == nil {
		return false
	}
	if v := t.Get(key); v != nil {
		switch v.Kind() {
		case tomledit.KindString:
			t.Set(key, tomledit.NewString(req))
		case tomledit.KindInlineTable:
			v.SetField("version", tomledit.NewString(req))
		default:
			return false
		}
		return true
	}
	return m.setDottedReq(t, key, req)
}

func (m *Document) setDottedReq(t *tomledit.Table, key, req string) bool {
	for _, e := range t.Entries() {
		k := e.Key()
		if len(k) == 2 && k[0] == key && k[1] == "version" {
			e.SetValue(tomledit.NewString(req))
			return true
		}
	}
	return false
}

// RemoveDependency deletes the entry under key from the given section and
// reports whether it was present. An emptied section table is dropped only
// when it was created during this edit session.
func (m *Document) RemoveDependency(sec Section, key string) bool {
	secPath := sec.TablePath()
	if sub := m.doc.Table(append(append([]string{}, secPath...), key)...); sub != nil {
		return m.doc.RemoveTable(sub)
	}
	t := m.doc.Table(secPath...)
	if t == nil {
		return false
	}
	removed := t.Remove(key)
	if !removed {
		for _, field := range dottedFields(t, key) {
			if t.RemovePath(key, field) {
				removed = true
			}
		}
	}
	if removed && t.Len() == 0 && t.Created() {
		m.doc.RemoveTable(t)
	}
	return removed
}

// GCDependency drops feature-table references left dangling when the named
// dependency is removed: array items of the form "name", "name/feat",
// "name?/feat", and "dep:name". A feature emptied by the sweep is deleted;
// the `[features]` table itself is deleted only when it did not pre-exist.
func (m *Document) GCDependency(name string) {
	feats := m.doc.Table("features")
	if feats == nil {
		return
	}
	for _, key := range feats.Keys() {
		arr := feats.Get(key)
		if arr == nil || arr.Kind() != tomledit.KindArray {
			continue
		}
		changed := arr.Filter(func(v *tomledit.Value) bool {
			s, ok := v.AsString()
			if !ok {
				return true
			}
			return !featureRefersTo(s, name)
		})
		if changed && arr.Len() == 0 {
			feats.Remove(key)
		}
	}
	if feats.Len() == 0 && feats.Created() {
		m.doc.RemoveTable(feats)
	}
}

func featureRefersTo(entry, dep string) bool {
	return entry == dep ||
		entry == "dep:"+dep ||
		strings.HasPrefix(entry, dep+"/") ||
		strings.HasPrefix(entry, dep+"?/")
}

// Write saves the manifest back to its path.
func (m *Document) Write() error {
	if err := os.WriteFile(m.path, m.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

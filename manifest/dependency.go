package manifest

import (
	"errors"
	"fmt"

	"github.com/cassaundra/cargo-edit/tomledit"
)

// ErrUnsupportedEntry indicates a dependency entry whose shape this package
// does not understand, such as a workspace-inherited dependency.
var ErrUnsupportedEntry = errors.New("unsupported dependency entry")

// SourceKind discriminates where a dependency comes from.
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourcePath
	SourceGit
)

// Dependency is the decoded form of one dependency entry.
type Dependency struct {
	// Name is the package name in the registry, after resolving a rename.
	Name string

	// Rename is the table key when it differs from the package name.
	Rename string

	// Req is the version requirement; may be empty for path and git sources.
	Req string

	// Path is the filesystem location for path dependencies.
	Path string

	// Git is the repository URL for git dependencies, with at most one of
	// Branch, Tag, or Rev narrowing the reference.
	Git    string
	Branch string
	Tag    string
	Rev    string

	// Registry names an alternative registry; empty means the default.
	Registry string

	Features        []string
	DefaultFeatures bool
	Optional        bool

	Section Section
}

// TomlKey returns the key the dependency is stored under in its table.
func (d *Dependency) TomlKey() string {
	if d.Rename != "" {
		return d.Rename
	}
	return d.Name
}

// SourceKind reports where the dependency is sourced from.
func (d *Dependency) SourceKind() SourceKind {
	switch {
	case d.Git != "":
		return SourceGit
	case d.Path != "":
		return SourcePath
	default:
		return SourceRegistry
	}
}

// SourceString renders the source for display and reporting.
func (d *Dependency) SourceString() string {
	switch d.SourceKind() {
	case SourceGit:
		return "git+" + d.Git
	case SourcePath:
		return "path+" + d.Path
	default:
		if d.Registry != "" {
			return "registry+" + d.Registry
		}
		return "registry"
	}
}

// simple reports whether the entry can be written in the bare-string form:
// nothing but a version requirement on the default registry.
func (d *Dependency) simple() bool {
	return d.Rename == "" && d.Path == "" && d.Git == "" && d.Registry == "" &&
		len(d.Features) == 0 && d.DefaultFeatures && !d.Optional && d.Req != ""
}

// decodeDependency builds a Dependency from a table entry value.
func decodeDependency(key string, v *tomledit.Value, sec Section) (*Dependency, error) {
	d := &Dependency{Name: key, DefaultFeatures: true, Section: sec}
	if s, ok := v.AsString(); ok {
		d.Req = s
		return d, nil
	}
	if v.Kind() != tomledit.KindInlineTable {
		return nil, fmt.Errorf("%w: %s is not a string or table", ErrUnsupportedEntry, key)
	}
	for _, field := range v.FieldKeys() {
		fv := v.Field(field)
		if err := d.decodeField(key, field, fv); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// decodeTableDependency builds a Dependency from a `[dependencies.<key>]`
// standard table.
func decodeTableDependency(key string, t *tomledit.Table, sec Section) (*Dependency, error) {
	d := &Dependency{Name: key, DefaultFeatures: true, Section: sec}
	for _, e := range t.Entries() {
		if len(e.Key()) != 1 {
			return nil, fmt.Errorf("%w: dotted key in dependency table %s", ErrUnsupportedEntry, key)
		}
		if err := d.decodeField(key, e.Key()[0], e.Value()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dependency) decodeField(key, field string, v *tomledit.Value) error {
	asString := func() (string, error) {
		s, ok := v.AsString()
		if !ok {
			return "", fmt.Errorf("%w: %s.%s is not a string", ErrUnsupportedEntry, key, field)
		}
		return s, nil
	}
	asBool := func() (bool, error) {
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("%w: %s.%s is not a boolean", ErrUnsupportedEntry, key, field)
		}
		return b, nil
	}

	var err error
	switch field {
	case "version":
		d.Req, err = asString()
	case "registry":
		d.Registry, err = asString()
	case "path":
		d.Path, err = asString()
	case "git":
		d.Git, err = asString()
	case "branch":
		d.Branch, err = asString()
	case "tag":
		d.Tag, err = asString()
	case "rev":
		d.Rev, err = asString()
	case "package":
		var pkg string
		if pkg, err = asString(); err == nil {
			d.Rename = key
			d.Name = pkg
		}
	case "default-features", "default_features":
		d.DefaultFeatures, err = asBool()
	case "features":
		if v.Kind() != tomledit.KindArray {
			return fmt.Errorf("%w: %s.features is not an array", ErrUnsupportedEntry, key)
		}
		d.Features = v.Strings()
	case "optional":
		d.Optional, err = asBool()
	case "workspace":
		return fmt.Errorf("%w: %s inherits from the workspace", ErrUnsupportedEntry, key)
	default:
		// Unknown fields are preserved verbatim by the merge writer.
	}
	return err
}

// canonicalFieldOrder fixes the key order used when writing a dependency as
// a fresh inline table.
var canonicalFieldOrder = []string{
	"version", "registry", "path", "git", "branch", "tag", "rev",
	"package", "default-features", "features", "optional",
}

// fieldValue returns the value to write for a field, or nil when the field
// is at its default and should be omitted.
func (d *Dependency) fieldValue(field string) *tomledit.Value {
	switch field {
	case "version":
		if d.Req != "" {
			return tomledit.NewString(d.Req)
		}
	case "registry":
		if d.Registry != "" {
			return tomledit.NewString(d.Registry)
		}
	case "path":
		if d.Path != "" {
			return tomledit.NewString(d.Path)
		}
	case "git":
		if d.Git != "" {
			return tomledit.NewString(d.Git)
		}
	case "branch":
		if d.Branch != "" {
			return tomledit.NewString(d.Branch)
		}
	case "tag":
		if d.Tag != "" {
			return tomledit.NewString(d.Tag)
		}
	case "rev":
		if d.Rev != "" {
			return tomledit.NewString(d.Rev)
		}
	case "package":
		if d.Rename != "" {
			return tomledit.NewString(d.Name)
		}
	case "default-features":
		if !d.DefaultFeatures {
			return tomledit.NewBool(false)
		}
	case "features":
		if len(d.Features) > 0 {
			return tomledit.NewStringArray(d.Features...)
		}
	case "optional":
		if d.Optional {
			return tomledit.NewBool(true)
		}
	}
	return nil
}

// encodeInline renders the dependency as a fresh inline table with keys in
// canonical order, omitting fields at their defaults.
func (d *Dependency) encodeInline() *tomledit.Value {
	t := tomledit.NewInlineTable()
	for _, field := range canonicalFieldOrder {
		if v := d.fieldValue(field); v != nil {
			t.SetField(field, v)
		}
	}
	return t
}

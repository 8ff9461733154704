// Package lockfile reads Cargo.lock pins and keeps them aligned with
// manifest edits without regenerating the file.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/cassaundra/cargo-edit/tomledit"
	"github.com/cassaundra/cargo-edit/vers"
)

// Filename is the lock file name Cargo uses.
const Filename = "Cargo.lock"

// ErrNotFound indicates the directory has no lock file.
var ErrNotFound = errors.New("lock file not found")

// Package is one resolved package pin.
type Package struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// Resolver regenerates a lock file after manifest edits. Implementations
// typically shell out to the package manager; a nil resolver leaves the file
// to Sync's in-place rewrites.
type Resolver interface {
	Update(ctx context.Context, dir string) error
}

type readModel struct {
	Version int       `toml:"version"`
	Package []Package `toml:"package"`
}

// File is a parsed lock file. Reads go through a decoded snapshot; writes go
// through the underlying document so untouched bytes survive verbatim.
type File struct {
	path     string
	packages []Package
	doc      *tomledit.Document
}

// Load reads the lock file in dir. A missing file returns ErrNotFound.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
		}
		return nil, err
	}
	return Parse(path, data)
}

// Parse parses lock file content. The name is used for error positions and
// as the file path.
func Parse(name string, data []byte) (*File, error) {
	doc, err := tomledit.Parse(name, data)
	if err != nil {
		return nil, err
	}
	var rm readModel
	if err := toml.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("failed to decode lock file: %w", err)
	}
	return &File{path: name, packages: rm.Package, doc: doc}, nil
}

// Path returns the lock file's path.
func (f *File) Path() string { return f.path }

// Packages returns the resolved pins in file order.
func (f *File) Packages() []Package { return f.packages }

// Bytes serializes the lock file.
func (f *File) Bytes() []byte { return f.doc.Serialize() }

// Write writes the lock file back to its path.
func (f *File) Write() error {
	return os.WriteFile(f.path, f.Bytes(), 0o644)
}

// Locked returns the pinned version of name that satisfies req, choosing the
// highest when several majors are locked at once. Build metadata is stripped
// because requirement strings never carry it. A nil req matches any pin.
func (f *File) Locked(name string, req *vers.Req) *semver.Version {
	var best *semver.Version
	for _, p := range f.packages {
		if p.Name != name {
			continue
		}
		v, err := semver.StrictNewVersion(p.Version)
		if err != nil {
			continue
		}
		if v.Metadata() != "" {
			stripped, err := v.SetMetadata("")
			if err == nil {
				v = &stripped
			}
		}
		if req != nil && !req.Matches(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// Sync rewrites the pin for name to version, picking the entry the old
// requirement was resolving to when the crate is locked at several majors.
// A pin that already satisfies newReq is left alone even when it differs
// from version. Only the version value changes; a checksum made stale by the
// change is dropped so the next resolution recomputes it. Sync reports
// whether the file changed.
func (f *File) Sync(name string, oldReq, newReq *vers.Req, version *semver.Version) bool {
	idx := -1
	var pinned *semver.Version
	for i, p := range f.packages {
		if p.Name != name {
			continue
		}
		v, err := semver.StrictNewVersion(p.Version)
		if err != nil {
			continue
		}
		if v.Equal(version) {
			return false
		}
		if idx < 0 {
			idx = i
			pinned = v
		}
		if oldReq != nil && oldReq.Matches(v) {
			idx = i
			pinned = v
		}
	}
	if idx < 0 {
		return false
	}
	if newReq != nil && newReq.Matches(pinned) {
		return false
	}
	target := f.packages[idx]

	for _, t := range f.doc.ArrayTables("package") {
		if t.GetString("name") != name || t.GetString("version") != target.Version {
			continue
		}
		t.Set("version", tomledit.NewString(version.String()))
		if target.Checksum != "" {
			t.Remove("checksum")
		}
		f.packages[idx].Version = version.String()
		f.packages[idx].Checksum = ""
		return true
	}
	return false
}

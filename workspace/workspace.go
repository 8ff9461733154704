// Package workspace discovers the manifests of a Cargo workspace and
// resolves dependency keys across its members.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/cassaundra/cargo-edit/manifest"
)

var (
	// ErrUnknownKey indicates a dependency key that no member declares.
	ErrUnknownKey = errors.New("unknown dependency")

	// ErrAmbiguousKey indicates a bare crate name that maps to more than
	// one table key across the workspace.
	ErrAmbiguousKey = errors.New("ambiguous dependency")

	// ErrUnknownMember indicates a member selector that names no package.
	ErrUnknownMember = errors.New("unknown workspace member")
)

// Member is one package of the workspace.
type Member struct {
	// Dir is the member's directory, absolute.
	Dir string

	// ManifestPath is Dir joined with the manifest filename.
	ManifestPath string

	// Doc is the member's parsed manifest.
	Doc *manifest.Document

	// Name is the package name, empty for a virtual workspace root.
	Name string
}

// Ref locates one dependency entry in one member.
type Ref struct {
	Member  *Member
	Section manifest.Section
	Key     string
	Dep     *manifest.Dependency
}

// Graph is the set of workspace members rooted at one directory.
type Graph struct {
	// Root is the manifest the discovery started from. It is also a
	// Member when it carries a [package] table.
	Root *Member

	// Members are all packages, root included, in discovery order.
	Members []*Member
}

// Discover loads the manifest in dir and resolves the workspace it belongs
// to. A manifest without a [workspace] table forms a single-member graph.
func Discover(dir string) (*Graph, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	doc, err := manifest.Load(abs)
	if err != nil {
		return nil, err
	}
	root := &Member{
		Dir:          abs,
		ManifestPath: doc.Path(),
		Doc:          doc,
		Name:         doc.PackageName(),
	}
	g := &Graph{Root: root}
	if root.Name != "" {
		g.Members = append(g.Members, root)
	}

	members, exclude, ok := doc.WorkspaceMembers()
	if !ok {
		if root.Name == "" {
			return nil, fmt.Errorf("%s: no package and no workspace", doc.Path())
		}
		return g, nil
	}

	dirs, err := expandMembers(abs, members, exclude)
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if d == abs {
			continue
		}
		mdoc, err := manifest.Load(d)
		if err != nil {
			return nil, fmt.Errorf("workspace member %s: %w", d, err)
		}
		g.Members = append(g.Members, &Member{
			Dir:          d,
			ManifestPath: mdoc.Path(),
			Doc:          mdoc,
			Name:         mdoc.PackageName(),
		})
	}
	return g, nil
}

// expandMembers turns the member patterns into the sorted list of matching
// directories that contain a manifest. Patterns use '/' regardless of the
// host separator.
func expandMembers(root string, patterns, exclude []string) ([]string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	literals := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{") {
			literals = append(literals, filepath.Join(root, filepath.FromSlash(p)))
			continue
		}
		gl, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("member pattern %q: %w", p, err)
		}
		globs = append(globs, gl)
	}
	excluded := make([]glob.Glob, 0, len(exclude))
	for _, p := range exclude {
		gl, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		excluded = append(excluded, gl)
	}

	seen := map[string]bool{}
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, d := range literals {
		if rel, err := filepath.Rel(root, d); err == nil && matchAny(excluded, filepath.ToSlash(rel)) {
			continue
		}
		if _, err := os.Stat(filepath.Join(d, manifest.Filename)); err != nil {
			return nil, fmt.Errorf("workspace member %s has no %s", d, manifest.Filename)
		}
		add(d)
	}
	if len(globs) > 0 {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() {
				return nil
			}
			name := entry.Name()
			if path != root && (name == "target" || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			if !matchAny(globs, rel) || matchAny(excluded, rel) {
				return nil
			}
			if _, err := os.Stat(filepath.Join(path, manifest.Filename)); err == nil {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, gl := range globs {
		if gl.Match(rel) {
			return true
		}
	}
	return false
}

// Member returns the named package, or nil.
func (g *Graph) Member(name string) *Member {
	for _, m := range g.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Refs lists every dependency entry across the workspace. Entries that fail
// to decode are skipped; mutation paths surface those errors themselves.
func (g *Graph) Refs() []Ref {
	var refs []Ref
	for _, m := range g.Members {
		for _, sec := range m.Doc.Sections() {
			for _, e := range m.Doc.Dependencies(sec) {
				if e.Err != nil {
					continue
				}
				refs = append(refs, Ref{Member: m, Section: sec, Key: e.Key, Dep: e.Dep})
			}
		}
	}
	return refs
}

// ResolveKey maps a dependency selector to the entries it names. The
// selector is a table key, optionally prefixed "member@" to restrict the
// search to one package. An exact key match wins outright; otherwise a bare
// crate name reaches entries renamed from that crate. A name that reaches
// entries under more than one distinct key is ambiguous.
func (g *Graph) ResolveKey(selector string) ([]Ref, error) {
	memberName := ""
	key := selector
	if i := strings.IndexByte(selector, '@'); i >= 0 {
		memberName, key = selector[:i], selector[i+1:]
	}
	pool := g.Refs()
	if memberName != "" {
		m := g.Member(memberName)
		if m == nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownMember, memberName)
		}
		filtered := pool[:0]
		for _, r := range pool {
			if r.Member == m {
				filtered = append(filtered, r)
			}
		}
		pool = filtered
	}

	var exact []Ref
	for _, r := range pool {
		if r.Key == key {
			exact = append(exact, r)
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}

	var renamed []Ref
	keys := map[string]bool{}
	for _, r := range pool {
		if r.Dep.Rename != "" && r.Dep.Name == key {
			renamed = append(renamed, r)
			keys[r.Key] = true
		}
	}
	switch {
	case len(renamed) == 0:
		return nil, fmt.Errorf("%w %q", ErrUnknownKey, key)
	case len(keys) > 1:
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: %s is provided by %s", ErrAmbiguousKey, key, strings.Join(names, ", "))
	}
	return renamed, nil
}

package cargoedit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cassaundra/cargo-edit/manifest"
	"github.com/cassaundra/cargo-edit/vers"
)

// AddRequest describes the dependencies to add to one package's manifest.
type AddRequest struct {
	// Dir is the directory of the manifest to edit.
	Dir string

	// Crates are "name" or "name@req" specs. May be empty when Path is
	// set; the crate name then comes from the path's manifest.
	Crates []string

	// Section selects the dependency table; the zero value is the plain
	// [dependencies] table.
	Section manifest.Section

	// Rename stores the dependency under a different key. Only valid for
	// a single crate.
	Rename string

	Features          []string
	NoDefaultFeatures bool
	Optional          bool

	// Path adds a filesystem dependency instead of a registry one.
	Path string

	// Git adds a git dependency; at most one of Branch, Tag, or Rev may
	// narrow the reference.
	Git    string
	Branch string
	Tag    string
	Rev    string

	// Registry names an alternative registry for the new entry.
	Registry string

	// DryRun plans without writing.
	DryRun bool
}

// AddResult reports what was added and the file contents involved.
type AddResult struct {
	Added   []*manifest.Dependency
	Changes *ChangeSet
}

// Add inserts or updates dependencies in the manifest at Dir. Registry
// dependencies without an explicit requirement get the newest published
// version at full precision. An entry that already exists keeps its place
// and its unrelated attributes.
func (e *Editor) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	if err := validateAdd(&req); err != nil {
		return nil, err
	}

	doc, err := manifest.Load(req.Dir)
	if err != nil {
		return nil, err
	}

	if req.Git != "" && e.cfg.gitResolver != nil {
		ref := firstNonEmpty(req.Branch, req.Tag, req.Rev)
		if err := e.cfg.gitResolver.Verify(ctx, req.Git, ref); err != nil {
			return nil, fmt.Errorf("git source %s: %w", req.Git, err)
		}
	}

	res := &AddResult{Changes: newChangeSet()}
	for _, spec := range req.Crates {
		d, err := e.buildDependency(ctx, doc, &req, spec)
		if err != nil {
			return nil, err
		}
		doc.SetDependency(d)
		res.Added = append(res.Added, d)
		e.logger().Info("adding dependency",
			"name", d.Name, "req", d.Req, "section", d.Section.String())
	}

	res.Changes.put(doc.Path(), doc.Bytes())
	if req.DryRun {
		return res, nil
	}
	if err := res.Changes.Apply(); err != nil {
		return res, err
	}
	if e.cfg.lockResolver != nil {
		if err := e.cfg.lockResolver.Update(ctx, doc.Dir()); err != nil {
			return res, fmt.Errorf("lock file update: %w", err)
		}
	}
	return res, nil
}

func validateAdd(req *AddRequest) error {
	if req.Git != "" && req.Path != "" {
		return errors.New("cannot specify both a git and a path source")
	}
	refs := 0
	for _, s := range []string{req.Branch, req.Tag, req.Rev} {
		if s != "" {
			refs++
		}
	}
	if refs > 0 && req.Git == "" {
		return errors.New("branch, tag, and rev require a git source")
	}
	if refs > 1 {
		return errors.New("at most one of branch, tag, and rev may be given")
	}
	if req.Rename != "" && len(req.Crates) > 1 {
		return errors.New("rename applies to a single crate")
	}
	if len(req.Crates) == 0 {
		if req.Path == "" {
			return errors.New("no crates to add")
		}
		name, err := pathCrateName(req.Path)
		if err != nil {
			return err
		}
		req.Crates = []string{name}
	}
	return nil
}

// pathCrateName reads the package name out of a path dependency's manifest.
func pathCrateName(dir string) (string, error) {
	doc, err := manifest.Load(dir)
	if err != nil {
		return "", fmt.Errorf("path dependency: %w", err)
	}
	name := doc.PackageName()
	if name == "" {
		return "", fmt.Errorf("path dependency %s has no package name", dir)
	}
	return name, nil
}

func (e *Editor) buildDependency(ctx context.Context, doc *manifest.Document, req *AddRequest, spec string) (*manifest.Dependency, error) {
	name, reqStr := spec, ""
	if i := strings.IndexByte(spec, '@'); i >= 0 {
		name, reqStr = spec[:i], spec[i+1:]
	}
	if name == "" {
		return nil, fmt.Errorf("invalid crate spec %q", spec)
	}
	if reqStr != "" {
		if _, err := vers.ParseReq(reqStr); err != nil {
			return nil, err
		}
	}

	d := &manifest.Dependency{
		Name:            name,
		Rename:          req.Rename,
		Req:             reqStr,
		Features:        req.Features,
		DefaultFeatures: !req.NoDefaultFeatures,
		Optional:        req.Optional,
		Registry:        req.Registry,
		Git:             req.Git,
		Branch:          req.Branch,
		Tag:             req.Tag,
		Rev:             req.Rev,
		Section:         req.Section,
	}
	if req.Path != "" {
		rel, err := filepath.Rel(doc.Dir(), req.Path)
		if err != nil {
			rel = req.Path
		}
		d.Path = filepath.ToSlash(rel)
	}

	// An existing entry keeps attributes the request does not touch.
	if existing, err := doc.GetDependency(req.Section, d.TomlKey()); err == nil && existing != nil {
		if d.Path == "" {
			d.Path = existing.Path
		}
		if d.Git == "" {
			d.Git = existing.Git
			d.Branch = existing.Branch
			d.Tag = existing.Tag
			d.Rev = existing.Rev
		}
		if d.Registry == "" {
			d.Registry = existing.Registry
		}
		if d.Req == "" {
			d.Req = existing.Req
		}
		if req.Features == nil {
			d.Features = existing.Features
		}
		if !req.NoDefaultFeatures {
			d.DefaultFeatures = existing.DefaultFeatures
		}
		if !req.Optional {
			d.Optional = existing.Optional
		}
		if d.Rename == "" && existing.Rename != "" {
			// The spec named the table key of a renamed entry; keep pointing
			// at the same crate.
			d.Rename = existing.Rename
			d.Name = existing.Name
		}
	}

	if d.Req == "" && d.SourceKind() == manifest.SourceRegistry {
		latest, err := e.latestVersion(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		d.Req = vers.Exact(latest)
	}
	return d, nil
}

// latestVersion picks the newest stable version, falling back to the newest
// prerelease when nothing stable was published yet.
func (e *Editor) latestVersion(ctx context.Context, name string) (*semver.Version, error) {
	versions, err := e.cfg.source.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	var best, bestPre *semver.Version
	for _, v := range versions {
		if v.Prerelease() != "" {
			bestPre = v
			continue
		}
		best = v
	}
	if best != nil {
		return best, nil
	}
	if bestPre != nil {
		return bestPre, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCrateNotFound, name)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

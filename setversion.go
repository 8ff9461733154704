package cargoedit

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/cassaundra/cargo-edit/lockfile"
	"github.com/cassaundra/cargo-edit/vers"
	"github.com/cassaundra/cargo-edit/workspace"
)

// SetVersionRequest describes a package version change.
type SetVersionRequest struct {
	// Dir is the directory whose manifest anchors the workspace.
	Dir string

	// Version is the new package version, full precision.
	Version string

	// Package restricts the change to one workspace member. Empty means
	// the package at Dir, or every member when Dir holds a virtual
	// workspace root.
	Package string

	// Workspace bumps every member regardless of Dir's own package.
	Workspace bool

	// DryRun plans without writing.
	DryRun bool
}

// SetVersionResult reports the bumped packages and the file contents
// involved.
type SetVersionResult struct {
	Bumped  []string
	Changes *ChangeSet
}

// SetVersion rewrites the version of one or more workspace packages and
// keeps the rest of the workspace coherent: sibling members that depend on
// a bumped package get their requirement rewritten when it no longer
// accepts the new version, and Cargo.lock pins follow.
func (e *Editor) SetVersion(ctx context.Context, req SetVersionRequest) (*SetVersionResult, error) {
	v, err := semver.StrictNewVersion(req.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", req.Version, err)
	}
	g, err := workspace.Discover(req.Dir)
	if err != nil {
		return nil, err
	}

	targets, err := versionTargets(g, req)
	if err != nil {
		return nil, err
	}

	res := &SetVersionResult{Changes: newChangeSet()}
	changed := make(map[*workspace.Member]bool)
	for _, m := range targets {
		if old := m.Doc.PackageVersion(); old != "" {
			if oldV, err := semver.StrictNewVersion(old); err == nil && v.LessThan(oldV) {
				e.logger().Warn("downgrading package version",
					"package", m.Name, "old", old, "new", req.Version)
			}
		}
		m.Doc.SetPackageVersion(req.Version)
		changed[m] = true
		res.Bumped = append(res.Bumped, m.Name)
		e.logger().Info("setting version", "package", m.Name, "version", req.Version)
	}

	// Dependents inside the workspace must keep accepting the bumped
	// packages.
	bumped := make(map[string]bool, len(targets))
	for _, m := range targets {
		bumped[m.Name] = true
	}
	for _, ref := range g.Refs() {
		if !bumped[ref.Dep.Name] || ref.Dep.Req == "" {
			continue
		}
		cur, err := vers.ParseReq(ref.Dep.Req)
		if err != nil || cur.Matches(v) {
			continue
		}
		newReq, ok := cur.Upgrade(v)
		if !ok {
			continue
		}
		if ref.Member.Doc.SetDependencyReq(ref.Section, ref.Key, newReq) {
			changed[ref.Member] = true
			e.logger().Debug("dependent requirement rewritten",
				"package", ref.Member.Name, "dependency", ref.Key, "new", newReq)
		}
	}

	lock, err := lockfile.Load(g.Root.Dir)
	if err != nil && !errors.Is(err, lockfile.ErrNotFound) {
		return nil, err
	}
	lockChanged := false
	if lock != nil {
		for _, m := range targets {
			if lock.Sync(m.Name, nil, nil, v) {
				lockChanged = true
			}
		}
	}

	for m := range changed {
		res.Changes.put(m.ManifestPath, m.Doc.Bytes())
	}
	if lockChanged {
		res.Changes.put(lock.Path(), lock.Bytes())
	}
	if req.DryRun {
		return res, nil
	}
	if err := res.Changes.Apply(); err != nil {
		return res, err
	}
	return res, nil
}

func versionTargets(g *workspace.Graph, req SetVersionRequest) ([]*workspace.Member, error) {
	if req.Package != "" {
		m := g.Member(req.Package)
		if m == nil {
			return nil, fmt.Errorf("%w %q", workspace.ErrUnknownMember, req.Package)
		}
		return []*workspace.Member{m}, nil
	}
	if req.Workspace || g.Root.Name == "" {
		if len(g.Members) == 0 {
			return nil, errors.New("workspace has no packages to version")
		}
		return g.Members, nil
	}
	return []*workspace.Member{g.Root}, nil
}

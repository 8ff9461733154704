package cargoedit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/cassaundra/cargo-edit/lockfile"
	"github.com/cassaundra/cargo-edit/manifest"
	"github.com/cassaundra/cargo-edit/selection"
	"github.com/cassaundra/cargo-edit/vers"
	"github.com/cassaundra/cargo-edit/workspace"
)

// UpgradeRequest describes one upgrade run over a workspace.
type UpgradeRequest struct {
	// Dir is the directory whose manifest anchors the workspace.
	Dir string

	// Deps restricts the run to the named dependencies; empty means every
	// dependency of every member. Entries may use the "member@key" form.
	Deps []string

	// Exclude removes dependencies from the run after Deps is applied.
	Exclude []string

	// Pinned upgrades exact and bounded requirements instead of skipping
	// them.
	Pinned bool

	// AllowPrerelease admits prerelease versions as candidates.
	AllowPrerelease bool

	// ToLockfile rewrites requirements to the versions Cargo.lock pins
	// instead of consulting the registry.
	ToLockfile bool

	// Compatible rewrites requirements even when the newest version
	// already satisfies them.
	Compatible bool

	// DryRun plans and reports without writing any file.
	DryRun bool

	// Locked fails the run before writing if any file would change.
	Locked bool
}

// UpgradeResult is the outcome of an upgrade run: the per-dependency report
// and the files that were (or, for a dry run, would be) written.
type UpgradeResult struct {
	Report  Report
	Changes *ChangeSet
}

// Upgrade raises the version requirements of a workspace's dependencies.
// Every considered dependency gets a report row; manifests are written only
// for requirements that actually change, and Cargo.lock pins follow the
// rewritten requirements.
func (e *Editor) Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	g, err := workspace.Discover(req.Dir)
	if err != nil {
		return nil, err
	}

	refs, err := selectRefs(g, req.Deps, req.Exclude)
	if err != nil {
		return nil, err
	}

	lock, err := lockfile.Load(g.Root.Dir)
	if err != nil {
		if !errors.Is(err, lockfile.ErrNotFound) {
			return nil, err
		}
		if req.ToLockfile {
			return nil, fmt.Errorf("cannot upgrade to lockfile versions: %w", err)
		}
		lock = nil
	}

	var available map[string][]*semver.Version
	var fetchErrs map[string]error
	if !req.ToLockfile {
		available, fetchErrs = e.fetchVersions(ctx, refs)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	pol := selection.Policy{
		AllowPinned:     req.Pinned,
		ToLockfile:      req.ToLockfile,
		AllowPrerelease: req.AllowPrerelease,
		ForceCompatible: req.Compatible,
	}

	res := &UpgradeResult{Changes: newChangeSet()}
	changed := make(map[*workspace.Member]bool)
	lockChanged := false

	for _, ref := range refs {
		out := e.selectOne(ref, pol, lock, available, fetchErrs)
		if out.Changed() {
			if ref.Member.Doc.SetDependencyReq(ref.Section, ref.Key, out.NewReq) {
				e.logger().Debug("requirement rewritten",
					"package", ref.Member.Name, "dependency", ref.Key,
					"old", out.OldReq, "new", out.NewReq)
				changed[ref.Member] = true
				if lock != nil && out.Latest != nil {
					oldReq, _ := vers.ParseReq(out.OldReq)
					newReq, _ := vers.ParseReq(out.NewReq)
					if lock.Sync(ref.Dep.Name, oldReq, newReq, out.Latest) {
						lockChanged = true
					}
				}
			} else {
				out.Decision = selection.Unresolvable
				out.NewReq = out.OldReq
				out.Note = "entry could not be rewritten in place"
			}
		}
		res.Report.Outcomes = append(res.Report.Outcomes, out)
	}

	for m := range changed {
		res.Changes.put(m.ManifestPath, m.Doc.Bytes())
	}
	if lockChanged {
		res.Changes.put(lock.Path(), lock.Bytes())
	}

	if req.Locked && !res.Changes.Empty() {
		return res, fmt.Errorf("%w: %s", ErrLockedChange,
			strings.Join(res.Changes.Paths(), ", "))
	}
	if req.DryRun {
		return res, nil
	}
	if err := res.Changes.Apply(); err != nil {
		return res, err
	}
	return res, nil
}

// selectRefs narrows the workspace's dependency entries to the requested
// set. A selector that names nothing is an error; silence there would hide
// typos.
func selectRefs(g *workspace.Graph, deps, exclude []string) ([]workspace.Ref, error) {
	var refs []workspace.Ref
	if len(deps) == 0 {
		refs = g.Refs()
	} else {
		seen := make(map[string]bool)
		for _, sel := range deps {
			resolved, err := g.ResolveKey(sel)
			if err != nil {
				if errors.Is(err, workspace.ErrUnknownKey) {
					return nil, fmt.Errorf("dependency %s doesn't exist", sel)
				}
				return nil, err
			}
			for _, r := range resolved {
				id := refID(r)
				if !seen[id] {
					seen[id] = true
					refs = append(refs, r)
				}
			}
		}
	}

	if len(exclude) == 0 {
		return refs, nil
	}
	excluded := make(map[string]bool)
	for _, sel := range exclude {
		resolved, err := g.ResolveKey(sel)
		if err != nil {
			if errors.Is(err, workspace.ErrUnknownKey) {
				return nil, fmt.Errorf("dependency %s doesn't exist", sel)
			}
			return nil, err
		}
		for _, r := range resolved {
			excluded[refID(r)] = true
		}
	}
	kept := refs[:0]
	for _, r := range refs {
		if !excluded[refID(r)] {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func refID(r workspace.Ref) string {
	return r.Member.ManifestPath + "\x00" + r.Section.String() + "\x00" + r.Key
}

// fetchVersions lists the registry versions for every upgradable crate in
// refs, with bounded parallelism. Failures are recorded per crate so one
// unreachable entry does not sink the run.
func (e *Editor) fetchVersions(ctx context.Context, refs []workspace.Ref) (map[string][]*semver.Version, map[string]error) {
	names := make(map[string]bool)
	for _, r := range refs {
		if r.Dep.Req == "" || r.Dep.SourceKind() == manifest.SourceGit {
			continue
		}
		names[r.Dep.Name] = true
	}

	available := make(map[string][]*semver.Version, len(names))
	fetchErrs := make(map[string]error)
	var mu sync.Mutex
	var grp errgroup.Group
	grp.SetLimit(e.cfg.concurrency)
	for name := range names {
		name := name
		grp.Go(func() error {
			vs, err := e.cfg.source.Versions(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErrs[name] = err
			} else {
				available[name] = vs
			}
			return nil
		})
	}
	_ = grp.Wait()
	return available, fetchErrs
}

func (e *Editor) selectOne(ref workspace.Ref, pol selection.Policy, lock *lockfile.File,
	available map[string][]*semver.Version, fetchErrs map[string]error) selection.Outcome {

	dep := ref.Dep
	if dep.Req == "" || dep.SourceKind() == manifest.SourceGit {
		return selection.Outcome{
			Key:      ref.Key,
			Decision: selection.Unchanged,
			Note:     "no registry version requirement",
		}
	}

	cur, err := vers.ParseReq(dep.Req)
	if err != nil {
		return selection.Outcome{
			Key:      ref.Key,
			OldReq:   dep.Req,
			NewReq:   dep.Req,
			Decision: selection.Unresolvable,
			Note:     err.Error(),
		}
	}
	if ferr, ok := fetchErrs[dep.Name]; ok {
		return selection.Outcome{
			Key:      ref.Key,
			OldReq:   dep.Req,
			NewReq:   dep.Req,
			Decision: selection.Unresolvable,
			Note:     ferr.Error(),
		}
	}

	in := selection.Input{
		Key:       ref.Key,
		Current:   cur,
		Available: available[dep.Name],
		Renamed:   dep.Rename != "",
	}
	if lock != nil {
		in.Locked = lock.Locked(dep.Name, cur)
	}
	return selection.Select(in, pol)
}

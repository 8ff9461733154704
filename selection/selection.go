// Package selection decides what requirement string to write for a
// dependency, given the versions a registry offers and the operator's policy
// flags. Every dependency gets an explicit outcome; nothing is skipped
// silently.
package selection

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/cassaundra/cargo-edit/vers"
)

// ErrNoLockedVersion indicates a lockfile-constrained selection found no
// locked version for the dependency.
var ErrNoLockedVersion = errors.New("no locked version")

// Decision classifies what happened to one dependency.
type Decision int

const (
	// Unchanged means the requirement already names the selected version.
	Unchanged Decision = iota

	// Upgraded means a new requirement string was selected.
	Upgraded

	// SkippedPinned means an exact/bounded requirement (or a renamed
	// dependency) was left alone under the default pin-skip policy.
	SkippedPinned

	// SkippedCompatible means a newer version exists but the current
	// requirement already accepts it.
	SkippedCompatible

	// Unresolvable means no candidate version could be determined.
	Unresolvable
)

func (d Decision) String() string {
	switch d {
	case Upgraded:
		return "upgraded"
	case SkippedPinned:
		return "pinned"
	case SkippedCompatible:
		return "compatible"
	case Unresolvable:
		return "unresolvable"
	default:
		return "unchanged"
	}
}

// Policy holds the orthogonal selection toggles. The zero value is the
// default behavior: skip pinned requirements, use the registry rather than
// the lock file, and ignore prereleases.
type Policy struct {
	// AllowPinned upgrades exact and bounded requirements instead of
	// skipping them.
	AllowPinned bool

	// ToLockfile restricts the candidate set to the version already pinned
	// in the lock file.
	ToLockfile bool

	// AllowPrerelease admits prerelease versions as candidates even when
	// the current requirement does not name one.
	AllowPrerelease bool

	// ForceCompatible rewrites requirements even when the selected version
	// already satisfies them.
	ForceCompatible bool
}

// Input is one dependency's selection context.
type Input struct {
	// Key is the dependency's table key, used in the outcome.
	Key string

	// Current is the requirement as written, nil when the entry has no
	// version field (path or git only).
	Current *vers.Req

	// Available is the registry's version list, ascending. May be nil when
	// the registry could not be reached; the caller then records the
	// failure note itself.
	Available []*semver.Version

	// Locked is the version pinned in the lock file, when any.
	Locked *semver.Version

	// Renamed marks entries stored under a rename key.
	Renamed bool
}

// Outcome is the per-dependency record of what was decided and why.
type Outcome struct {
	Key      string
	OldReq   string
	NewReq   string
	Decision Decision
	Note     string

	// Latest is the best candidate considered, when one was found.
	Latest *semver.Version

	// Locked echoes the lock file pin used for the decision, when any.
	Locked *semver.Version
}

// Changed reports whether the outcome rewrites the manifest.
func (o Outcome) Changed() bool {
	return o.Decision == Upgraded && o.NewReq != o.OldReq
}

// Select computes the outcome for one dependency under the given policy.
func Select(in Input, pol Policy) Outcome {
	out := Outcome{Key: in.Key, Locked: in.Locked}
	if in.Current == nil {
		out.Decision = Unchanged
		out.Note = "no version requirement to upgrade"
		return out
	}
	out.OldReq = in.Current.String()
	out.NewReq = out.OldReq

	if !pol.AllowPinned {
		if in.Renamed {
			out.Decision = SkippedPinned
			out.Note = "renamed dependencies are not upgraded by default"
			return out
		}
		if in.Current.Pinned() {
			out.Decision = SkippedPinned
			out.Note = "pinned requirement"
			return out
		}
	}

	if pol.ToLockfile {
		if in.Locked == nil {
			out.Decision = Unresolvable
			out.Note = ErrNoLockedVersion.Error()
			return out
		}
		return finish(in, pol, out, in.Locked)
	}

	target := pickLatest(in, pol)
	if target == nil {
		out.Decision = Unresolvable
		out.Note = "no candidate version available"
		return out
	}
	return finish(in, pol, out, target)
}

// pickLatest returns the highest acceptable candidate: stable unless the
// policy or the written requirement admits prereleases, and never below the
// requirement's lower bound.
func pickLatest(in Input, pol Policy) *semver.Version {
	allowPre := pol.AllowPrerelease || in.Current.HasPrerelease()
	lower := in.Current.LowerBound()
	var best *semver.Version
	for _, v := range in.Available {
		if v.Prerelease() != "" && !allowPre {
			continue
		}
		if v.LessThan(lower) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

func finish(in Input, pol Policy, out Outcome, target *semver.Version) Outcome {
	out.Latest = target
	newReq, changed := in.Current.Upgrade(target)
	if !changed {
		out.Decision = Unchanged
		return out
	}
	if !pol.ToLockfile && !pol.ForceCompatible && in.Current.Matches(target) {
		out.Decision = SkippedCompatible
		out.Note = fmt.Sprintf("%s is compatible with %s", target, out.OldReq)
		return out
	}
	out.Decision = Upgraded
	out.NewReq = newReq
	return out
}

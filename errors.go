package cargoedit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cassaundra/cargo-edit/lockfile"
	"github.com/cassaundra/cargo-edit/registry"
	"github.com/cassaundra/cargo-edit/selection"
	"github.com/cassaundra/cargo-edit/workspace"
)

// Sentinel errors surfaced by the editing operations. The package-level
// aliases let callers match without importing the subpackages.
var (
	// ErrUnknownDependency indicates a requested dependency that no
	// manifest in the workspace declares.
	ErrUnknownDependency = workspace.ErrUnknownKey

	// ErrAmbiguousDependency indicates a crate name that maps to more
	// than one table key across the workspace.
	ErrAmbiguousDependency = workspace.ErrAmbiguousKey

	// ErrCrateNotFound indicates the registry has no entry for a crate.
	ErrCrateNotFound = registry.ErrCrateNotFound

	// ErrOffline indicates a crate lookup needed the network while the
	// editor runs offline.
	ErrOffline = registry.ErrOffline

	// ErrNoLockedVersion indicates a lockfile-constrained upgrade found no
	// pin for a dependency.
	ErrNoLockedVersion = selection.ErrNoLockedVersion

	// ErrLockfileMissing indicates an operation that needs Cargo.lock ran
	// in a directory without one.
	ErrLockfileMissing = lockfile.ErrNotFound

	// ErrLockedChange indicates an operation would modify files while the
	// caller demanded none change.
	ErrLockedChange = errors.New("files would change in locked mode")
)

// ApplyError reports a partially applied change set: which files made it to
// disk before the failure, and which did not.
type ApplyError struct {
	Written []string
	Failed  string
	Err     error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("failed to write %s: %v", e.Failed, e.Err)
	if len(e.Written) > 0 {
		msg += fmt.Sprintf(" (already written: %s)", strings.Join(e.Written, ", "))
	}
	return msg
}

func (e *ApplyError) Unwrap() error { return e.Err }

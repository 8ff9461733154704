package cargoedit

import (
	"context"
	"fmt"

	"github.com/cassaundra/cargo-edit/manifest"
)

// RemoveRequest describes the dependencies to drop from one package's
// manifest.
type RemoveRequest struct {
	// Dir is the directory of the manifest to edit.
	Dir string

	// Deps are the table keys to remove.
	Deps []string

	// Section selects the dependency table; the zero value is the plain
	// [dependencies] table.
	Section manifest.Section

	// DryRun plans without writing.
	DryRun bool
}

// RemoveResult reports the keys removed and the file contents involved.
type RemoveResult struct {
	Removed []string
	Changes *ChangeSet
}

// Remove drops dependencies from the manifest at Dir, along with the
// [features] entries that only existed for them. Removing a key that is not
// present is an error.
func (e *Editor) Remove(ctx context.Context, req RemoveRequest) (*RemoveResult, error) {
	doc, err := manifest.Load(req.Dir)
	if err != nil {
		return nil, err
	}

	res := &RemoveResult{Changes: newChangeSet()}
	for _, key := range req.Deps {
		d, err := doc.GetDependency(req.Section, key)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, fmt.Errorf("the dependency `%s` could not be found in `%s`",
				key, req.Section.String())
		}
		if !doc.RemoveDependency(req.Section, key) {
			return nil, fmt.Errorf("the dependency `%s` could not be found in `%s`",
				key, req.Section.String())
		}
		doc.GCDependency(key)
		res.Removed = append(res.Removed, key)
		e.logger().Info("removing dependency",
			"name", key, "section", req.Section.String())
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

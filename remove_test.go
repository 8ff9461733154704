package cargoedit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/cargo-edit/manifest"
)

const removeManifest = `[package]
name = "demo"
version = "0.1.0"

[dependencies]
anyhow = "1.0.75"
rand = { version = "0.7", optional = true }

[dev-dependencies]
log = "0.4"

[features]
default = ["rng"]
rng = ["dep:rand", "rand/small_rng"]
`

func TestRemove(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	e := newTestEditor(t)

	res, err := e.Remove(context.Background(), RemoveRequest{Dir: dir, Deps: []string{"rand"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rand"}, res.Removed)

	out := readManifest(t, dir)
	assert.NotContains(t, out, "rand")
	assert.Contains(t, out, `anyhow = "1.0.75"`)
	assert.NotContains(t, out, "rng = [", "features made of nothing but the removed dep are dropped")
	assert.Contains(t, out, `default = ["rng"]`, "references to other features are not rewritten")
}

func TestRemoveDevDependency(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	e := newTestEditor(t)

	_, err := e.Remove(context.Background(), RemoveRequest{
		Dir:     dir,
		Deps:    []string{"log"},
		Section: manifest.Section{Kind: manifest.KindDev},
	})
	require.NoError(t, err)
	out := readManifest(t, dir)
	assert.NotContains(t, out, `log = "0.4"`)
	assert.Contains(t, out, "[dev-dependencies]",
		"a pre-existing section header stays even when emptied")
}

func TestRemoveNotFound(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	e := newTestEditor(t)

	_, err := e.Remove(context.Background(), RemoveRequest{Dir: dir, Deps: []string{"serde"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be found")
	assert.Equal(t, removeManifest, readManifest(t, dir), "a failed remove writes nothing")
}

func TestRemoveWrongSection(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	e := newTestEditor(t)

	// log lives in dev-dependencies, not dependencies.
	_, err := e.Remove(context.Background(), RemoveRequest{Dir: dir, Deps: []string{"log"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies")
}

func TestRemoveDryRun(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	e := newTestEditor(t)

	res, err := e.Remove(context.Background(), RemoveRequest{Dir: dir, Deps: []string{"rand"}, DryRun: true})
	require.NoError(t, err)
	assert.False(t, res.Changes.Empty())
	assert.Equal(t, removeManifest, readManifest(t, dir))
}

func TestRemoveInvokesLockResolver(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": removeManifest})
	rec := &recordingResolver{}
	e := newTestEditor(t, WithLockResolver(rec))

	_, err := e.Remove(context.Background(), RemoveRequest{Dir: dir, Deps: []string{"rand"}})
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, rec.dirs)
}

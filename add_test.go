package cargoedit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/cargo-edit/manifest"
)

const addManifest = `[package]
name = "demo"
version = "0.1.0"

[dependencies]
anyhow = "1.0.75"
`

func readManifest(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	return string(data)
}

func TestAddLatestVersion(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	res, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"rand"}})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "0.8.5", res.Added[0].Req, "first add pins full precision")
	assert.Contains(t, readManifest(t, dir), `rand = "0.8.5"`)
}

func TestAddExplicitRequirement(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"rand@0.7"}})
	require.NoError(t, err)
	assert.Contains(t, readManifest(t, dir), `rand = "0.7"`)
}

func TestAddWithAttributes(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{
		Dir:               dir,
		Crates:            []string{"serde@1.0"},
		Features:          []string{"derive"},
		NoDefaultFeatures: true,
		Optional:          true,
	})
	require.NoError(t, err)
	out := readManifest(t, dir)
	assert.Contains(t, out, `serde = { version = "1.0", default-features = false, features = ["derive"], optional = true }`)
}

func TestAddDevDependency(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{
		Dir:     dir,
		Crates:  []string{"log@0.4"},
		Section: manifest.Section{Kind: manifest.KindDev},
	})
	require.NoError(t, err)
	out := readManifest(t, dir)
	assert.Contains(t, out, "[dev-dependencies]")
	assert.Contains(t, out, `log = "0.4"`)
}

func TestAddRename(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{
		Dir:    dir,
		Crates: []string{"log@0.4"},
		Rename: "logging",
	})
	require.NoError(t, err)
	assert.Contains(t, readManifest(t, dir), `logging = { version = "0.4", package = "log" }`)
}

func TestAddPathDependency(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"app/Cargo.toml": addManifest,
		"lib/Cargo.toml": `[package]
name = "demo-lib"
version = "0.2.0"
`,
	})
	e := newTestEditor(t)

	res, err := e.Add(context.Background(), AddRequest{
		Dir:  filepath.Join(dir, "app"),
		Path: filepath.Join(dir, "lib"),
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "demo-lib", res.Added[0].Name, "crate name inferred from the path manifest")

	data, err := os.ReadFile(filepath.Join(dir, "app", "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `demo-lib = { path = "../lib" }`)
}

func TestAddExistingKeepsAttributes(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": `[package]
name = "demo"
version = "0.1.0"

[dependencies]
rand = { version = "0.7", features = ["small_rng"] }
`})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{
		Dir:      dir,
		Crates:   []string{"rand@0.8"},
		Features: []string{"small_rng"},
	})
	require.NoError(t, err)
	assert.Contains(t, readManifest(t, dir), `rand = { version = "0.8", features = ["small_rng"] }`)
}

func TestAddVersionOnlyKeepsAttributes(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": `[package]
name = "demo"
version = "0.1.0"

[dependencies]
rand = { version = "0.7", features = ["small_rng"], optional = true }
`})
	e := newTestEditor(t)

	// Only the requirement is given; features and optional must survive.
	_, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"rand@0.8"}})
	require.NoError(t, err)
	assert.Contains(t, readManifest(t, dir),
		`rand = { version = "0.8", features = ["small_rng"], optional = true }`)
}

func TestAddRenamedEntryByKey(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": `[package]
name = "demo"
version = "0.1.0"

[dependencies]
logging = { version = "0.4", package = "log" }
`})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"logging@0.5"}})
	require.NoError(t, err)
	assert.Contains(t, readManifest(t, dir),
		`logging = { version = "0.5", package = "log" }`,
		"re-adding by table key keeps the entry pointing at the same crate")
}

func TestAddDottedEntry(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": `[package]
name = "demo"
version = "0.1.0"

[dependencies]
anyhow = "1.0.75"
serde.version = "1.0"
serde.features = ["derive"]
`})
	e := newTestEditor(t)

	_, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"serde@1.2"}})
	require.NoError(t, err)
	out := readManifest(t, dir)
	assert.Contains(t, out, `serde.version = "1.2"`)
	assert.Contains(t, out, `serde.features = ["derive"]`)
	assert.NotContains(t, out, `serde = `, "no duplicate key may be introduced")
}

func TestAddTwiceIsStable(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)
	req := AddRequest{Dir: dir, Crates: []string{"rand@0.8"}, Features: []string{"small_rng"}}

	_, err := e.Add(context.Background(), req)
	require.NoError(t, err)
	first := readManifest(t, dir)

	_, err = e.Add(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, readManifest(t, dir), "second run must be a no-op")
}

func TestAddValidation(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	tests := []struct {
		name string
		req  AddRequest
	}{
		{"no crates", AddRequest{Dir: dir}},
		{"git and path", AddRequest{Dir: dir, Crates: []string{"x"}, Git: "https://example.com/x", Path: "/tmp/x"}},
		{"ref without git", AddRequest{Dir: dir, Crates: []string{"x"}, Branch: "main"}},
		{"two refs", AddRequest{Dir: dir, Crates: []string{"x"}, Git: "https://example.com/x", Branch: "main", Tag: "v1"}},
		{"rename with many", AddRequest{Dir: dir, Crates: []string{"a", "b"}, Rename: "c"}},
		{"bad requirement", AddRequest{Dir: dir, Crates: []string{"rand@not-a-version"}}},
		{"unknown crate", AddRequest{Dir: dir, Crates: []string{"unpublished"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Add(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestAddDryRun(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	e := newTestEditor(t)

	res, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"rand"}, DryRun: true})
	require.NoError(t, err)
	assert.False(t, res.Changes.Empty())
	assert.Equal(t, addManifest, readManifest(t, dir), "dry run must not touch disk")
}

// recordingResolver records lock file regeneration requests.
type recordingResolver struct {
	dirs []string
}

func (r *recordingResolver) Update(_ context.Context, dir string) error {
	r.dirs = append(r.dirs, dir)
	return nil
}

func TestAddInvokesLockResolver(t *testing.T) {
	dir := writeFixture(t, map[string]string{"Cargo.toml": addManifest})
	rec := &recordingResolver{}
	e := newTestEditor(t, WithLockResolver(rec))

	_, err := e.Add(context.Background(), AddRequest{Dir: dir, Crates: []string{"rand"}})
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, rec.dirs)
}

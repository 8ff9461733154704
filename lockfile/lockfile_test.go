package lockfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/cassaundra/cargo-edit/vers"
)

const sampleLock = `# This file is automatically @generated by Cargo.
# It is not intended for manual editing.
version = 3

[[package]]
name = "demo"
version = "0.3.1"
dependencies = [
 "log 0.4.20",
 "serde",
]

[[package]]
name = "log"
version = "0.4.20"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "b5e6163cb8c49088c2c36f57875e58ccd8c87c7427f7fbd50ea6710b2f3f2e8f"

[[package]]
name = "rand"
version = "0.7.3"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "6a6b1679d49b24bbfe0c803429aa1874472f50d9b363131f0e89fc356b544d03"

[[package]]
name = "rand"
version = "0.8.5"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "34af8d1a0e25924bc5b7c43c079c942339d8f0a8b57c39049bef581b46327404"

[[package]]
name = "serde"
version = "1.0.190"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "91d3c334ca1ee894a2c6f6ad698fe8c435b76d504b13d436f0685d648d6d96f7"
`

func parseLock(t *testing.T) *File {
	t.Helper()
	f, err := Parse("Cargo.lock", []byte(sampleLock))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return f
}

func TestParseRoundTrip(t *testing.T) {
	f := parseLock(t)
	if !bytes.Equal(f.Bytes(), []byte(sampleLock)) {
		t.Error("Bytes() differs from input for an untouched file")
	}
	if got := len(f.Packages()); got != 5 {
		t.Errorf("len(Packages()) = %d, want 5", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLocked(t *testing.T) {
	f := parseLock(t)
	tests := []struct {
		name string
		req  string
		want string
	}{
		{"serde", "1", "1.0.190"},
		{"rand", "0.7", "0.7.3"},
		{"rand", "0.8", "0.8.5"},
		{"rand", "", "0.8.5"},
		{"serde", "2", ""},
		{"absent", "1", ""},
	}
	for _, tt := range tests {
		var req *vers.Req
		if tt.req != "" {
			req = vers.MustParseReq(tt.req)
		}
		got := f.Locked(tt.name, req)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("Locked(%s, %q) = %v, want nil", tt.name, tt.req, got)
		case tt.want != "" && (got == nil || got.String() != tt.want):
			t.Errorf("Locked(%s, %q) = %v, want %s", tt.name, tt.req, got, tt.want)
		}
	}
}

func TestSync(t *testing.T) {
	f := parseLock(t)
	v := semver.MustParse("1.0.195")
	if !f.Sync("serde", vers.MustParseReq("1"), vers.MustParseReq("1.0.195"), v) {
		t.Fatal("Sync() = false, want a rewrite")
	}
	out := string(f.Bytes())
	if !contains(out, `version = "1.0.195"`) {
		t.Error("new version missing from output")
	}
	if contains(out, "91d3c334ca1ee894") {
		t.Error("stale serde checksum survived the rewrite")
	}
	// Untouched neighbors keep their checksums.
	if !contains(out, "b5e6163cb8c49088") {
		t.Error("log checksum was dropped")
	}
	if got := f.Locked("serde", nil); got == nil || got.String() != "1.0.195" {
		t.Errorf("Locked after Sync = %v, want 1.0.195", got)
	}
}

func TestSyncPicksTheMatchingMajor(t *testing.T) {
	f := parseLock(t)
	if !f.Sync("rand", vers.MustParseReq("0.7"), vers.MustParseReq("0.7.4"), semver.MustParse("0.7.4")) {
		t.Fatal("Sync() = false, want a rewrite")
	}
	out := string(f.Bytes())
	if !contains(out, `version = "0.7.4"`) {
		t.Error("0.7 entry was not rewritten")
	}
	if !contains(out, `version = "0.8.5"`) {
		t.Error("0.8 entry was touched")
	}
}

func TestSyncSatisfiedPin(t *testing.T) {
	f := parseLock(t)
	before := f.Bytes()
	if f.Sync("serde", vers.MustParseReq("1"), nil, semver.MustParse("1.0.190")) {
		t.Error("Sync() = true for a pin already at the target")
	}
	if !bytes.Equal(f.Bytes(), before) {
		t.Error("file changed for a satisfied pin")
	}
}

func TestSyncPinSatisfyingNewReq(t *testing.T) {
	// The pin is newer than the selected version but already satisfies the
	// rewritten requirement; the lock entry and its checksum must survive.
	f := parseLock(t)
	before := f.Bytes()
	if f.Sync("serde", vers.MustParseReq("1"), vers.MustParseReq("1.0"), semver.MustParse("1.0.150")) {
		t.Error("Sync() = true for a pin satisfying the new requirement")
	}
	if !bytes.Equal(f.Bytes(), before) {
		t.Error("file changed although the pin satisfies the new requirement")
	}
	if !contains(string(f.Bytes()), "91d3c334ca1ee894") {
		t.Error("serde checksum was dropped")
	}
}

func TestSyncUnknownPackage(t *testing.T) {
	f := parseLock(t)
	if f.Sync("absent", nil, nil, semver.MustParse("1.0.0")) {
		t.Error("Sync() = true for a package the lock file never pinned")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(sampleLock), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	f.Sync("serde", nil, nil, semver.MustParse("1.0.195"))
	if err := f.Write(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(string(data), `version = "1.0.195"`) {
		t.Error("written file lacks the new version")
	}
}

func contains(s, sub string) bool {
	return bytes.Contains([]byte(s), []byte(sub))
}

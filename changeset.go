package cargoedit

import (
	"os"
	"sort"
)

// ChangeSet collects the file contents an operation wants to write so the
// caller can inspect them before anything touches disk.
type ChangeSet struct {
	files map[string][]byte
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{files: make(map[string][]byte)}
}

// put records the full new content for path, replacing any earlier record.
func (cs *ChangeSet) put(path string, data []byte) {
	cs.files[path] = data
}

// Paths lists the files the change set would write, sorted.
func (cs *ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs.files))
	for p := range cs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Content returns the pending content for path, or nil.
func (cs *ChangeSet) Content(path string) []byte {
	return cs.files[path]
}

// Empty reports whether the change set writes nothing.
func (cs *ChangeSet) Empty() bool {
	return len(cs.files) == 0
}

// Apply writes every pending file, in path order so repeated runs touch disk
// in the same sequence. On failure it reports which files were already
// written.
func (cs *ChangeSet) Apply() error {
	var written []string
	for _, path := range cs.Paths() {
		if err := os.WriteFile(path, cs.files[path], 0o644); err != nil {
			return &ApplyError{Written: written, Failed: path, Err: err}
		}
		written = append(written, path)
	}
	return nil
}

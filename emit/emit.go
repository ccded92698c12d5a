// Package emit writes generated files only when their content changes.
//
// Leaving an unchanged file untouched keeps its modification time stable,
// which is what stops a build system from seeing a fresh input and invoking
// the generator again.
package emit

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
)

// Outcome reports what WriteIfChanged did
type Outcome int

const (
	Unchanged Outcome = iota
	Written
)

func (o Outcome) String() string {
	if o == Written {
		return "written"
	}
	return "unchanged"
}

// WriteIfChanged writes content to path unless the file already holds
// exactly those bytes. The parent directory is created as needed and the
// write goes through a temp file in the same directory plus a rename.
func WriteIfChanged(path string, content []byte) (Outcome, error) {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, content):
		logger.Debugw("Artifact unchanged", "path", path)
		return Unchanged, nil
	case err != nil && !os.IsNotExist(err):
		return Unchanged, errors.Wrapf(err, "failed to read %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Unchanged, errors.Wrapf(err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Unchanged, errors.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return Unchanged, errors.Wrapf(err, "failed to write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return Unchanged, errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return Unchanged, errors.Wrapf(err, "failed to chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Unchanged, errors.Wrapf(err, "failed to replace %s", path)
	}

	logger.Debugw("Artifact written", "path", path, "bytes", len(content))
	return Written, nil
}

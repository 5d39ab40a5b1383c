package builtin

import (
	"os"
	"path/filepath"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// readFileString reads the full contents of path, mapping a missing file
// to KindResourceNotFound.
func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", vterrors.Wrap(vterrors.KindResourceNotFound, "file does not exist", err)
		}
		return "", vterrors.Wrap(vterrors.KindInternal, "read file", err)
	}
	return string(data), nil
}

// atomicWriteFile writes content to path by writing a temp file in the
// same directory and renaming it over path, so a crash mid-write never
// leaves a partially-written file in place.
func atomicWriteFile(path, content string) error {
	dir := filepath.Dir(path)
	info, statErr := os.Stat(path)
	mode := os.FileMode(0o644)
	if statErr == nil {
		mode = info.Mode()
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return vterrors.Wrap(vterrors.KindInternal, "create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return vterrors.Wrap(vterrors.KindInternal, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return vterrors.Wrap(vterrors.KindInternal, "close temp file", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return vterrors.Wrap(vterrors.KindInternal, "set file mode", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return vterrors.Wrap(vterrors.KindInternal, "rename temp file into place", err)
	}
	return nil
}

package builtin

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// maxSearchFileBytes caps how much of any single file the builtin walkers
// read into memory; larger files are skipped rather than partially scanned.
const maxSearchFileBytes = 4 << 20 // 4MiB

// walkSearchable walks rootPath (a file or directory), reading each
// plain-text file line by line and invoking visit(path, lines). Directory
// entries beginning with "." are skipped unless includeHidden is true.
// visit returning false stops the walk early.
func walkSearchable(rootPath string, includeHidden bool, excluded func(string) bool, visit func(path string, lines []string) bool) error {
	info, err := os.Stat(rootPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return visitFile(rootPath, visit)
	}

	err = filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		if path != rootPath && !includeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded != nil && excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !visitFile(path, visit) {
			return filepath.SkipAll
		}
		return nil
	})
	return err
}

// visitFile reads path and invokes visit with its lines, returning false
// to propagate a request to stop the walk entirely.
func visitFile(path string, visit func(path string, lines []string) bool) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSearchFileBytes {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	if looksBinary(f) {
		return true
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return visit(path, lines)
}

func looksBinary(f *os.File) bool {
	defer f.Seek(0, 0)
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	return false
}

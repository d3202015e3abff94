package load

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	bufSize          = 64 * 1024
	cancelCheckEvery = 4096
)

// writeAtomic writes path through a temporary file in the same directory
// and renames it into place, so readers never see a partial file.
func writeAtomic(path string, fill func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriterSize(tmp, bufSize)
	if err := fill(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true
	return nil
}

// uniqueColumns makes header names unique without regard to case. Empty
// names become column_N. A repeat takes the first free suffix _2, _3...
// Names in reserved are treated as already taken.
func uniqueColumns(header []string, reserved ...string) []string {
	used := make(map[string]bool, len(header)+len(reserved))
	for _, name := range reserved {
		used[strings.ToLower(name)] = true
	}
	out := make([]string, len(header))
	for i, name := range header {
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 2; used[strings.ToLower(candidate)]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

package transaction

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFilesToPath materializes each completed file into targetDir, named by
// its kind, and returns the written paths. Valid only after a successful
// Finalize.
func (t *PutTransaction) WriteFilesToPath(targetDir string) ([]string, error) {
	t.mu.Lock()
	files := append([]CommittedFile(nil), t.files...)
	state := t.state
	t.mu.Unlock()

	if state != StateCommitted {
		return nil, fmt.Errorf("writeFilesToPath: %w", ErrNotFinalized)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("writeFilesToPath: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(targetDir, f.Kind.String())
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return nil, fmt.Errorf("writeFilesToPath %s: %w", f.Kind, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

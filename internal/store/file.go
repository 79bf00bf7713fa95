package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// readFile loads a JSON document into out. A missing or unreadable file is
// not an error: the store falls back to an empty state so a transient read
// failure never fails a request.
func readFile(path string, out any, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read store file, starting empty", "path", path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warn("failed to parse store file, starting empty", "path", path, "error", err)
	}
}

// writeFile rewrites the whole JSON document. Writes go through a temp file
// and rename so a crash mid-write cannot truncate the store.
func writeFile(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", ErrPersistence, filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", ErrPersistence, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrPersistence, filepath.Base(path), err)
	}
	return nil
}

// Package jsondoc reads and writes the JSON documents that back the
// metadata and user stores. Every write goes through a temp file and an
// atomic rename; a document that fails to parse is moved aside and replaced
// by an empty one rather than taking the store down.
package jsondoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Load reads the document at path into v. A missing file leaves v untouched
// and returns false. A corrupt file is renamed to <name>.backup_<timestamp>,
// logged, and treated as missing.
func Load(path string, v interface{}, logger *zap.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		backup := fmt.Sprintf("%s.backup_%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return false, fmt.Errorf("failed to quarantine corrupt document %s: %w", path, renameErr)
		}
		logger.Warn("corrupt document moved aside, starting empty",
			zap.String("path", path),
			zap.String("backup", backup),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Save writes v to path atomically: marshal, write a temp file in the same
// directory, fsync, then rename over the destination.
func Save(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"migrator/internal/migrate"
	"migrator/internal/pubkey"
)

const (
	migratedSuffix = "_migrated_mints.json"
	failedSuffix   = "_failed_mints.json"
)

// ResultPaths names the two files written for a batch.
type ResultPaths struct {
	Migrated string
	Failed   string
}

func ResultPathsFor(dir string, collection pubkey.Key) ResultPaths {
	if dir == "" {
		dir = "."
	}
	name := collection.String()
	return ResultPaths{
		Migrated: filepath.Join(dir, name+migratedSuffix),
		Failed:   filepath.Join(dir, name+failedSuffix),
	}
}

// WriteResults writes the migrated and failed sequences for collection into
// dir as indented JSON arrays. Both files are always written, possibly as
// empty arrays.
func WriteResults(dir string, collection pubkey.Key, res migrate.BatchResult) (ResultPaths, error) {
	paths := ResultPathsFor(dir, collection)
	if d := filepath.Dir(paths.Migrated); d != "." && d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return paths, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	succeeded := res.Succeeded
	if succeeded == nil {
		succeeded = []migrate.Success{}
	}
	failed := res.Failed
	if failed == nil {
		failed = []migrate.Failure{}
	}

	// One file failing must not prevent the other from being written.
	return paths, errors.Join(
		writeJSON(paths.Migrated, succeeded),
		writeJSON(paths.Failed, failed),
	)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(v)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

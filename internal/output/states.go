package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"migrator/internal/accounts"
)

const statesSuffix = "_migration_states.json"

func StatesPathFor(dir, cluster string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, cluster+statesSuffix)
}

// WriteStates writes states for cluster into dir as an indented JSON array
// and returns the file path.
func WriteStates(dir, cluster string, states []accounts.StateEntry) (string, error) {
	path := StatesPathFor(dir, cluster)
	if d := filepath.Dir(path); d != "." && d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return path, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	out := make([]accounts.MigrationState, 0, len(states))
	for _, e := range states {
		out = append(out, e.State)
	}
	return path, writeJSON(path, out)
}

// PrintStates reports the outcome of a states listing.
func PrintStates(w io.Writer, found, skipped int, path string) error {
	green := color.New(color.FgGreen)
	faint := color.New(color.Faint)

	if _, err := green.Fprintf(w, "Found: %d states\n", found); err != nil {
		return err
	}
	if skipped > 0 {
		if _, err := faint.Fprintf(w, "  skipped %d non-state accounts\n", skipped); err != nil {
			return err
		}
	}
	if _, err := green.Fprintf(w, "Wrote migration states to %s\n", path); err != nil {
		return err
	}
	return flushIfPossible(w)
}

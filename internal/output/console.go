package output

import (
	"io"
	"os"

	"github.com/fatih/color"

	"migrator/internal/migrate"
	"migrator/internal/pubkey"
)

// DefaultFailureListLimit caps how many failures the summary prints.
const DefaultFailureListLimit = 20

// Summary renders the end-of-run report for a terminal.
type Summary struct {
	writer       io.Writer
	failureLimit int
}

func NewSummary(w io.Writer) *Summary {
	if w == nil {
		w = os.Stdout
	}
	return &Summary{writer: w, failureLimit: DefaultFailureListLimit}
}

// SetFailureLimit sets how many failures are listed; n <= 0 lists none.
func (s *Summary) SetFailureLimit(n int) {
	s.failureLimit = n
}

func (s *Summary) Print(collection pubkey.Key, res migrate.BatchResult, paths ResultPaths) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	var err error
	printf := func(c *color.Color, format string, args ...any) {
		if err != nil {
			return
		}
		_, err = c.Fprintf(s.writer, format, args...)
	}

	printf(bold, "Collection %s\n", collection)
	printf(green, "  migrated: %d\n", len(res.Succeeded))
	if len(res.Failed) > 0 {
		printf(red, "  failed:   %d\n", len(res.Failed))
	} else {
		printf(faint, "  failed:   0\n")
	}

	if n := min(len(res.Failed), s.failureLimit); n > 0 {
		printf(bold, "\nFailures:\n")
		for _, f := range res.Failed[:n] {
			printf(red, "  %s", f.Item)
			printf(faint, "  %s\n", f.Error)
		}
		if rest := len(res.Failed) - n; rest > 0 {
			printf(faint, "  ... and %d more\n", rest)
		}
	}

	printf(bold, "\nResults:\n")
	printf(faint, "  %s\n  %s\n", paths.Migrated, paths.Failed)
	if err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

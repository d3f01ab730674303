package output

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"migrator/internal/migrate"
	"migrator/internal/pubkey"
)

// ReportSink writes a Markdown summary of the run on Close.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	collection   *pubkey.Key
	total        int
	succeeded    int
	failures     []migrate.Failure
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case migrate.Outcome:
		if t.OK() {
			s.succeeded++
		} else {
			s.failures = append(s.failures, migrate.Failure{Item: t.Item, Error: t.Err.Error()})
		}
	case Event:
		switch t.Type {
		case EventRunStarted:
			s.collection = t.Collection
			s.total = t.Items
		case EventRunFinished:
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("# Migration Report\n\n")
	if s.collection != nil {
		fmt.Fprintf(&b, "Collection: `%s`\n\n", s.collection)
	}

	b.WriteString("| Items | Migrated | Failed | Not processed |\n")
	b.WriteString("|------:|---------:|-------:|--------------:|\n")
	processed := s.succeeded + len(s.failures)
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", max(s.total, processed), s.succeeded, len(s.failures), max(s.total-processed, 0))

	if s.haveExitCode {
		fmt.Fprintf(&b, "Exit code: %d\n\n", s.exitCode)
	}

	if len(s.failures) > 0 {
		b.WriteString("## Failure reasons\n\n")
		b.WriteString("| Reason | Items | Examples |\n")
		b.WriteString("|--------|------:|----------|\n")
		for _, g := range groupFailures(s.failures) {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(g.Reason), len(g.Items), formatItemList(g.Items, 3))
		}
		b.WriteString("\n")

		b.WriteString("## Failed items\n\n")
		sorted := append([]migrate.Failure(nil), s.failures...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Item.String() < sorted[j].Item.String() })
		for _, f := range sorted {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Item, f.Error)
		}
	}

	_, err := s.file.WriteString(b.String())
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

type failureGroup struct {
	Reason string
	Items  []string
}

// groupFailures buckets failures by normalized reason, largest group first.
func groupFailures(failures []migrate.Failure) []failureGroup {
	byReason := make(map[string]*failureGroup)
	for _, f := range failures {
		reason := normalizeErrorReason(f.Error)
		g, ok := byReason[reason]
		if !ok {
			g = &failureGroup{Reason: reason}
			byReason[reason] = g
		}
		g.Items = append(g.Items, f.Item.String())
	}

	out := make([]failureGroup, 0, len(byReason))
	for _, g := range byReason {
		sort.Strings(g.Items)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Items) != len(out[j].Items) {
			return len(out[i].Items) > len(out[j].Items)
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Base58 runs long enough to be account addresses.
var addressPattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)

// normalizeErrorReason collapses whitespace and replaces addresses so that
// failures with the same cause group together.
func normalizeErrorReason(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")
	s = addressPattern.ReplaceAllString(s, "<address>")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

func formatItemList(items []string, max int) string {
	if len(items) <= max {
		return "`" + strings.Join(items, "`, `") + "`"
	}
	return fmt.Sprintf("`%s` (+%d more)", strings.Join(items[:max], "`, `"), len(items)-max)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

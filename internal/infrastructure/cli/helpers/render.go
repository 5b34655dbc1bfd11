package helpers

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/audit"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
)

// Styler colors output when it goes to a terminal.
type Styler struct {
	Color bool
}

// NewStyler enables color for terminal writers unless NO_COLOR is set.
func NewStyler(w io.Writer) Styler {
	if os.Getenv("NO_COLOR") != "" {
		return Styler{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return Styler{}
	}
	return Styler{Color: term.IsTerminal(int(f.Fd()))}
}

func (s Styler) wrap(code, text string) string {
	if !s.Color {
		return text
	}
	return code + text + ansiReset
}

// Bold renders text in bold.
func (s Styler) Bold(text string) string { return s.wrap(ansiBold, text) }

// Dim renders secondary text.
func (s Styler) Dim(text string) string { return s.wrap(ansiDim, text) }

// Outcome colors an outcome label.
func (s Styler) Outcome(o domain.Outcome) string {
	label := strings.ToUpper(string(o))
	switch o {
	case domain.OutcomeBlock:
		return s.wrap(ansiRed+ansiBold, label)
	case domain.OutcomeInject:
		return s.wrap(ansiCyan, label)
	default:
		return s.wrap(ansiGreen, label)
	}
}

// Severity colors an issue or health label.
func (s Styler) Severity(label string) string {
	switch strings.ToLower(label) {
	case "error", "fail":
		return s.wrap(ansiRed, strings.ToUpper(label))
	case "warn", "warning":
		return s.wrap(ansiYellow, strings.ToUpper(label))
	default:
		return s.wrap(ansiGreen, strings.ToUpper(label))
	}
}

// RenderDecision prints a decision in a human-readable form.
func RenderDecision(out io.Writer, s Styler, d domain.Decision) {
	fmt.Fprintf(out, "Decision: %s\n", s.Outcome(d.Outcome()))
	if len(d.MatchedRules) > 0 {
		fmt.Fprintf(out, "Matched: %s\n", strings.Join(d.MatchedRules, ", "))
	} else {
		fmt.Fprintln(out, "Matched: (none)")
	}
	if d.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", d.Reason)
	}
	if d.Context != "" {
		fmt.Fprintf(out, "\nContext (%s):\n", humanize.Bytes(uint64(len(d.Context))))
		for _, line := range strings.Split(d.Context, "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	RenderNotes(out, s, d.Notes)
}

// RenderNotes prints decision notes, one per line.
func RenderNotes(out io.Writer, s Styler, notes []domain.Note) {
	if len(notes) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, note := range notes {
		prefix := s.Severity(string(note.Level))
		if note.Rule != "" {
			fmt.Fprintf(out, "[%s] %s: %s\n", prefix, note.Rule, note.Message)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", prefix, note.Message)
	}
}

// RenderTrace prints the per-rule debug trace.
func RenderTrace(out io.Writer, s Styler, trace []domain.RuleEvaluation) {
	fmt.Fprintf(out, "\nTrace (%d rule(s) considered):\n", len(trace))
	for i, entry := range trace {
		mark := "-"
		if entry.Matched {
			mark = s.wrap(ansiGreen, "+")
		}
		fmt.Fprintf(out, "%2d %s %s %s\n", i+1, mark, s.Bold(entry.Rule), s.Dim(formatElapsed(entry.Elapsed)))
		if entry.Pattern != "" {
			fmt.Fprintf(out, "     pattern: %s\n", entry.Pattern)
		}
		if entry.Input != "" {
			fmt.Fprintf(out, "     input:   %s\n", entry.Input)
		}
		if entry.Detail != "" {
			fmt.Fprintf(out, "     result:  %s\n", entry.Detail)
		}
	}
}

// RenderIssues prints rule-set diagnostics.
func RenderIssues(out io.Writer, s Styler, issues []domain.ConfigIssue) {
	for _, issue := range issues {
		if issue.Rule != "" {
			fmt.Fprintf(out, "[%s] rule %s: %s\n", s.Severity(string(issue.Severity)), issue.Rule, issue.Message)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", s.Severity(string(issue.Severity)), issue.Message)
	}
}

// RenderEntries prints audit entries in a compact one-line form.
func RenderEntries(out io.Writer, s Styler, entries []domain.LogEntry) {
	for _, entry := range entries {
		subject := entry.Command
		if subject == "" {
			subject = entry.Path
		}
		tool := entry.Tool
		if tool == "" {
			tool = "-"
		}
		fmt.Fprintf(out, "%s  %-6s  %-18s %-10s %s\n",
			entry.Timestamp.Local().Format(time.DateTime),
			s.Outcome(entry.Outcome),
			string(entry.Event),
			tool,
			subject)
		if len(entry.MatchedRules) > 0 {
			fmt.Fprintf(out, "    rules: %s\n", strings.Join(entry.MatchedRules, ", "))
		}
		if entry.Reason != "" {
			fmt.Fprintf(out, "    reason: %s\n", entry.Reason)
		}
	}
}

// RenderChainReport prints the outcome of an audit chain verification.
func RenderChainReport(out io.Writer, s Styler, report audit.ChainReport) {
	fmt.Fprintf(out, "%s: %s record(s), %s sealed\n", report.Path,
		humanize.Comma(int64(report.Entries)), humanize.Comma(int64(report.Sealed)))
	for _, b := range report.Breaks {
		id := b.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(out, "[%s] line %d (%s): %s\n", s.Severity("FAIL"), b.Line, id, b.Reason)
	}
	if report.Intact() {
		fmt.Fprintf(out, "[%s] chain intact", s.Severity("OK"))
		if report.LastHash != "" {
			fmt.Fprintf(out, ", head %s", report.LastHash)
		}
		fmt.Fprintln(out)
	}
}

// RenderSummary prints aggregate audit statistics.
func RenderSummary(out io.Writer, s Styler, summary AuditSummary, top []RuleStatistic) {
	fmt.Fprintf(out, "Entries: %s across %d session(s)\n", humanize.Comma(int64(summary.Total)), summary.Sessions)
	for _, outcome := range []domain.Outcome{domain.OutcomeAllow, domain.OutcomeInject, domain.OutcomeBlock} {
		count := summary.Outcomes[outcome]
		fmt.Fprintf(out, "  %-6s %6d (%.1f%%)\n", s.Outcome(outcome), count, CalculateRate(count, summary.Total))
	}
	if summary.Notes > 0 {
		fmt.Fprintf(out, "Notes: %d\n", summary.Notes)
	}
	if len(top) == 0 {
		return
	}
	fmt.Fprintln(out, "\nTop rules:")
	for _, stat := range top {
		fmt.Fprintf(out, "  %6d  %s\n", stat.Count, stat.Rule)
	}
}

func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return d.Round(10 * time.Microsecond).String()
}

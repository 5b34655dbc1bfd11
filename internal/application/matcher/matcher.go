// Package matcher decides whether a rule's matcher clause applies to an event.
//
// Evaluate is pure: regular expressions are compiled when the rule set is
// loaded, and the same function serves live evaluation and simulation.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/doeshing/hookgate/internal/domain"
)

// Category names as they appear in rule documents and traces.
const (
	CategoryEvents       = "events"
	CategoryTools        = "tools"
	CategoryExtensions   = "extensions"
	CategoryDirectories  = "directories"
	CategoryCommandMatch = "command_match"
	CategoryPathMatch    = "path_match"
)

// Check is the outcome of one category.
type Check struct {
	Category string
	Pattern  string
	Input    string
	Matched  bool
}

// Result explains a match decision.
type Result struct {
	Matched bool
	Checks  []Check
	Detail  string
}

// Pattern renders the tested patterns as "category=pattern" pairs.
func (r Result) Pattern() string {
	parts := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		parts = append(parts, c.Category+"="+c.Pattern)
	}
	return strings.Join(parts, " ")
}

// Input renders the tested inputs as "category=input" pairs.
func (r Result) Input() string {
	parts := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		parts = append(parts, c.Category+"="+c.Input)
	}
	return strings.Join(parts, " ")
}

// Evaluate checks every present category in a fixed order and stops at the
// first one that fails. An absent event field never satisfies a category that
// tests it.
func Evaluate(clause domain.MatcherClause, ev domain.Event) Result {
	if clause.IsEmpty() {
		return Result{Matched: true, Detail: "empty matcher matches every event"}
	}

	var res Result
	fail := func(c Check, detail string) Result {
		res.Checks = append(res.Checks, c)
		res.Detail = detail
		return res
	}

	if len(clause.Events) > 0 {
		c := Check{Category: CategoryEvents, Pattern: joinKinds(clause.Events), Input: string(ev.Kind)}
		if c.Matched = matchEvent(clause.Events, ev.Kind); !c.Matched {
			return fail(c, "event kind not listed")
		}
		res.Checks = append(res.Checks, c)
	}

	if len(clause.Tools) > 0 {
		c := Check{Category: CategoryTools, Pattern: strings.Join(clause.Tools, ","), Input: ev.Tool}
		if c.Matched = ev.Tool != "" && containsExact(clause.Tools, ev.Tool); !c.Matched {
			if ev.Tool == "" {
				return fail(c, "event has no tool")
			}
			return fail(c, "tool not listed")
		}
		res.Checks = append(res.Checks, c)
	}

	if len(clause.Extensions) > 0 {
		c := Check{Category: CategoryExtensions, Pattern: strings.Join(clause.Extensions, ","), Input: ev.Path}
		if c.Matched = ev.Path != "" && MatchExtension(clause.Extensions, ev.Path); !c.Matched {
			if ev.Path == "" {
				return fail(c, "event has no path")
			}
			return fail(c, "extension not listed")
		}
		res.Checks = append(res.Checks, c)
	}

	if len(clause.Directories) > 0 {
		c := Check{Category: CategoryDirectories, Pattern: strings.Join(clause.Directories, ","), Input: ev.Path}
		if c.Matched = ev.Path != "" && MatchDirectory(clause.Directories, ev.Path, ev.Cwd); !c.Matched {
			if ev.Path == "" {
				return fail(c, "event has no path")
			}
			return fail(c, "path outside listed directories")
		}
		res.Checks = append(res.Checks, c)
	}

	if !clause.CommandMatch.IsZero() {
		c := Check{Category: CategoryCommandMatch, Pattern: clause.CommandMatch.Source, Input: ev.Command}
		if c.Matched = ev.Command != "" && clause.CommandMatch.MatchString(ev.Command); !c.Matched {
			if ev.Command == "" {
				return fail(c, "event has no command")
			}
			return fail(c, "command did not match")
		}
		res.Checks = append(res.Checks, c)
	}

	if !clause.PathMatch.IsZero() {
		c := Check{Category: CategoryPathMatch, Pattern: clause.PathMatch.Source, Input: ev.Path}
		if c.Matched = ev.Path != "" && clause.PathMatch.MatchString(ev.Path); !c.Matched {
			if ev.Path == "" {
				return fail(c, "event has no path")
			}
			return fail(c, "path did not match")
		}
		res.Checks = append(res.Checks, c)
	}

	res.Matched = true
	res.Detail = "all categories matched"
	return res
}

// Matches is Evaluate without the explanation.
func Matches(clause domain.MatcherClause, ev domain.Event) bool {
	return Evaluate(clause, ev).Matched
}

// MatchExtension reports whether the file name of path ends with one of the
// suffixes. Comparison is case-sensitive.
func MatchExtension(extensions []string, path string) bool {
	base := filepath.Base(path)
	for _, ext := range extensions {
		if ext != "" && strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// MatchDirectory reports whether path lies inside one of dirs. Entries are
// either directory prefixes, compared on separator boundaries, or glob
// patterns matched against the path and each of its ancestors. A "**"
// segment spans any number of directories. Relative entries and paths are
// resolved against cwd when the other side is absolute; entries starting
// with "**" match anywhere and are never resolved.
func MatchDirectory(dirs []string, path, cwd string) bool {
	target := filepath.Clean(path)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entry := dir
		candidate := target
		if cwd != "" {
			if filepath.IsAbs(candidate) && !filepath.IsAbs(entry) && !strings.HasPrefix(entry, "**") {
				entry = filepath.Join(cwd, entry)
			}
			if !filepath.IsAbs(candidate) && filepath.IsAbs(entry) {
				candidate = filepath.Join(cwd, candidate)
			}
		}
		if matchDirectoryEntry(entry, candidate) {
			return true
		}
	}
	return false
}

func matchDirectoryEntry(entry, path string) bool {
	if strings.HasSuffix(entry, "/**") {
		entry = strings.TrimSuffix(entry, "/**")
	}
	if !hasGlobMeta(entry) {
		return hasPathPrefix(path, filepath.Clean(entry))
	}
	pattern := filepath.ToSlash(filepath.Clean(entry))
	relative := !strings.HasPrefix(pattern, "/")
	for p := path; ; {
		name := filepath.ToSlash(p)
		if relative {
			name = strings.TrimPrefix(name, "/")
		}
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// ValidDirectoryEntry reports whether a directories entry is a well-formed
// prefix or glob.
func ValidDirectoryEntry(entry string) bool {
	return doublestar.ValidatePattern(filepath.ToSlash(entry))
}

// hasPathPrefix reports whether path equals prefix or lies beneath it.
func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if prefix == "." {
		return !filepath.IsAbs(path) && path != ".." && !strings.HasPrefix(path, ".."+string(filepath.Separator))
	}
	if strings.HasSuffix(prefix, string(filepath.Separator)) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func matchEvent(kinds []domain.EventKind, kind domain.EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func containsExact(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func joinKinds(kinds []domain.EventKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
)

func TestEvaluateEmptyClauseMatchesEverything(t *testing.T) {
	for _, ev := range []domain.Event{
		{Kind: domain.EventSessionStart},
		{Kind: domain.EventPreToolUse, Tool: "Bash", Command: "ls"},
	} {
		assert.True(t, Matches(domain.MatcherClause{}, ev))
	}
}

func TestEvaluateCategoryConjunction(t *testing.T) {
	clause := domain.MatcherClause{
		Tools:        []string{"Bash"},
		CommandMatch: domain.MustPattern(`^git push.*--force`),
	}

	res := Evaluate(clause, domain.Event{Kind: domain.EventPreToolUse, Tool: "Bash", Command: "git push"})
	assert.False(t, res.Matched)
	assert.Equal(t, "command did not match", res.Detail)

	res = Evaluate(clause, domain.Event{Kind: domain.EventPreToolUse, Tool: "Bash", Command: "git push --force"})
	assert.True(t, res.Matched)
	require.Len(t, res.Checks, 2)
	assert.Equal(t, "tools=Bash command_match=^git push.*--force", res.Pattern())
	assert.Equal(t, "tools=Bash command_match=git push --force", res.Input())

	assert.False(t, Matches(clause, domain.Event{Tool: "Write", Command: "git push --force"}))
}

func TestEvaluateToolsCaseSensitive(t *testing.T) {
	clause := domain.MatcherClause{Tools: []string{"Bash", "Write"}}
	assert.True(t, Matches(clause, domain.Event{Tool: "Write"}))
	assert.False(t, Matches(clause, domain.Event{Tool: "bash"}))
	assert.False(t, Matches(clause, domain.Event{}))
}

func TestEvaluateCommandMatchIsSearchNotAnchored(t *testing.T) {
	clause := domain.MatcherClause{CommandMatch: domain.MustPattern(`rm -rf`)}
	assert.True(t, Matches(clause, domain.Event{Command: "cd /tmp && rm -rf build"}))
}

func TestEvaluateAbsentFieldNeverMatches(t *testing.T) {
	tests := []struct {
		name   string
		clause domain.MatcherClause
		detail string
	}{
		{"command", domain.MatcherClause{CommandMatch: domain.MustPattern(`.*`)}, "event has no command"},
		{"path", domain.MatcherClause{PathMatch: domain.MustPattern(`.*`)}, "event has no path"},
		{"extensions", domain.MatcherClause{Extensions: []string{".py"}}, "event has no path"},
		{"directories", domain.MatcherClause{Directories: []string{"/"}}, "event has no path"},
		{"tools", domain.MatcherClause{Tools: []string{""}}, "event has no tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.clause, domain.Event{Kind: domain.EventSessionStart})
			assert.False(t, res.Matched)
			assert.Equal(t, tt.detail, res.Detail)
		})
	}
}

func TestEvaluateExtensions(t *testing.T) {
	clause := domain.MatcherClause{Extensions: []string{".py", ".pyi"}}
	assert.True(t, Matches(clause, domain.Event{Path: "app.py"}))
	assert.True(t, Matches(clause, domain.Event{Path: "/src/types.pyi"}))
	assert.False(t, Matches(clause, domain.Event{Path: "cache.pyc"}))
	assert.False(t, Matches(clause, domain.Event{Path: "APP.PY"}))
}

func TestEvaluateDirectoryPrefix(t *testing.T) {
	clause := domain.MatcherClause{Directories: []string{"/src"}}

	assert.False(t, Matches(clause, domain.Event{Path: "/src2/file.py"}))
	assert.True(t, Matches(clause, domain.Event{Path: "/src/file.py"}))
	assert.True(t, Matches(clause, domain.Event{Path: "/src/sub/file.py"}))
	assert.True(t, Matches(clause, domain.Event{Path: "/src"}))
	assert.True(t, Matches(domain.MatcherClause{Directories: []string{"/src/"}}, domain.Event{Path: "/src/a"}))
}

func TestEvaluateDirectoryResolvesAgainstCwd(t *testing.T) {
	clause := domain.MatcherClause{Directories: []string{"src"}}
	assert.True(t, Matches(clause, domain.Event{Path: "/repo/src/main.go", Cwd: "/repo"}))
	assert.False(t, Matches(clause, domain.Event{Path: "/repo/srcx/main.go", Cwd: "/repo"}))
	assert.True(t, Matches(clause, domain.Event{Path: "src/main.go"}))

	abs := domain.MatcherClause{Directories: []string{"/repo/src"}}
	assert.True(t, Matches(abs, domain.Event{Path: "src/main.go", Cwd: "/repo"}))
}

func TestEvaluateDirectoryGlobs(t *testing.T) {
	tests := []struct {
		entry string
		path  string
		want  bool
	}{
		{"/repo/*/migrations", "/repo/app/migrations/001.sql", true},
		{"/repo/*/migrations", "/repo/app/models/user.go", false},
		{"/repo/src/**", "/repo/src/deep/file.go", true},
		{"/repo/src/**", "/repo/src2/file.go", false},
		{"/etc/ssh?", "/etc/sshd/config", true},
		{"/repo/**/secrets", "/repo/a/b/secrets/key.pem", true},
		{"/repo/**/secrets", "/repo/secrets/key.pem", true},
		{"/repo/**/secrets", "/repo/a/public/key.pem", false},
		{"**/secrets", "/repo/secrets/key.pem", true},
		{"**/secrets", "/repo/secretsx/key.pem", false},
		{"/repo/{app,lib}/*.go", "/repo/lib/x.go", true},
	}
	for _, tt := range tests {
		t.Run(tt.entry+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchDirectory([]string{tt.entry}, tt.path, ""))
		})
	}
}

func TestDoubleStarEntryIgnoresCwd(t *testing.T) {
	clause := domain.MatcherClause{Directories: []string{"**/.ssh"}}
	assert.True(t, Matches(clause, domain.Event{Path: "/home/dev/.ssh/id_ed25519", Cwd: "/repo"}))
	assert.False(t, Matches(clause, domain.Event{Path: "/home/dev/ssh/id_ed25519", Cwd: "/repo"}))
}

func TestValidDirectoryEntry(t *testing.T) {
	assert.True(t, ValidDirectoryEntry("/repo/**/secrets"))
	assert.True(t, ValidDirectoryEntry("src"))
	assert.False(t, ValidDirectoryEntry("/repo/[abc"))
	assert.False(t, ValidDirectoryEntry("/repo/{a,b"))
}

func TestEvaluateEventsCategory(t *testing.T) {
	clause := domain.MatcherClause{Events: []domain.EventKind{domain.EventUserPromptSubmit}}
	assert.True(t, Matches(clause, domain.Event{Kind: domain.EventUserPromptSubmit}))

	res := Evaluate(clause, domain.Event{Kind: domain.EventPreToolUse})
	assert.False(t, res.Matched)
	assert.Equal(t, "event kind not listed", res.Detail)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	clause := domain.MatcherClause{
		Tools:     []string{"Edit"},
		PathMatch: domain.MustPattern(`\.env$`),
	}
	ev := domain.Event{Tool: "Edit", Path: "/app/.env"}
	first := Evaluate(clause, ev)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(clause, ev))
	}
}

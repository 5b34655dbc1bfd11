package domain

import (
	"fmt"
	"strings"
)

// EventKind enumerates the hook points the host agent reports.
type EventKind string

const (
	EventPreToolUse        EventKind = "PreToolUse"
	EventPostToolUse       EventKind = "PostToolUse"
	EventPermissionRequest EventKind = "PermissionRequest"
	EventUserPromptSubmit  EventKind = "UserPromptSubmit"
	EventSessionStart      EventKind = "SessionStart"
	EventSessionEnd        EventKind = "SessionEnd"
	EventPreCompact        EventKind = "PreCompact"
)

// EventKinds lists every supported kind in hook order.
var EventKinds = []EventKind{
	EventPreToolUse,
	EventPostToolUse,
	EventPermissionRequest,
	EventUserPromptSubmit,
	EventSessionStart,
	EventSessionEnd,
	EventPreCompact,
}

// ParseEventKind accepts the canonical spelling as well as kebab/snake case
// variants ("pre-tool-use", "pre_tool_use").
func ParseEventKind(value string) (EventKind, error) {
	key := normalizeKind(value)
	for _, kind := range EventKinds {
		if normalizeKind(string(kind)) == key {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", value)
}

func normalizeKind(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "")
	return strings.ReplaceAll(value, "_", "")
}

// Event is one intercepted agent action. Empty fields are absent.
type Event struct {
	Kind      EventKind `json:"event"`
	Tool      string    `json:"tool,omitempty"`
	Command   string    `json:"command,omitempty"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Cwd       string    `json:"cwd,omitempty"`
}

// ScanTarget is the text content-scanning rules inspect: the write payload,
// or the command when no payload is present.
func (e Event) ScanTarget() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Command
}

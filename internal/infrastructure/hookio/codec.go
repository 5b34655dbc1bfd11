// Package hookio converts between the host agent's hook records and domain types.
package hookio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/doeshing/hookgate/internal/domain"
)

// record accepts both the host hook payload (hook_event_name, tool_name,
// tool_input) and the flat form produced by Encode/EncodeEvent.
type record struct {
	HookEventName string    `json:"hook_event_name"`
	Event         string    `json:"event"`
	SessionID     string    `json:"session_id"`
	Cwd           string    `json:"cwd"`
	ToolName      string    `json:"tool_name"`
	Tool          string    `json:"tool"`
	ToolInput     toolInput `json:"tool_input"`
	Prompt        string    `json:"prompt"`
	Command       string    `json:"command"`
	Path          string    `json:"path"`
	Content       string    `json:"content"`
}

type toolInput struct {
	Command      string `json:"command"`
	FilePath     string `json:"file_path"`
	Path         string `json:"path"`
	NotebookPath string `json:"notebook_path"`
	Content      string `json:"content"`
	NewString    string `json:"new_string"`
	NewSource    string `json:"new_source"`
}

// Response is the three-field record the host agent reads.
type Response struct {
	Continue bool   `json:"continue"`
	Context  string `json:"context"`
	Reason   string `json:"reason"`
}

// DecodeEvent reads exactly one event record from r.
func DecodeEvent(r io.Reader) (domain.Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: read: %v", domain.ErrInvalidEvent, err)
	}
	return ParseEvent(data)
}

// ParseEvent decodes one event record.
func ParseEvent(data []byte) (domain.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return domain.Event{}, fmt.Errorf("%w: empty input", domain.ErrInvalidEvent)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	name := first(rec.HookEventName, rec.Event)
	if name == "" {
		return domain.Event{}, fmt.Errorf("%w: missing hook_event_name", domain.ErrInvalidEvent)
	}
	kind, err := domain.ParseEventKind(name)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	in := rec.ToolInput
	return domain.Event{
		Kind:      kind,
		Tool:      first(rec.ToolName, rec.Tool),
		Command:   first(in.Command, rec.Command),
		Path:      first(in.FilePath, in.NotebookPath, in.Path, rec.Path),
		Content:   first(in.Content, in.NewString, in.NewSource, rec.Prompt, rec.Content),
		SessionID: rec.SessionID,
		Cwd:       rec.Cwd,
	}, nil
}

// EncodeDecision writes the host response for d followed by a newline.
func EncodeDecision(w io.Writer, d domain.Decision) error {
	return json.NewEncoder(w).Encode(NewResponse(d))
}

// NewResponse converts a decision into its host form.
func NewResponse(d domain.Decision) Response {
	return Response{Continue: d.Continue, Context: d.Context, Reason: d.Reason}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

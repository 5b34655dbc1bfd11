package helpers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/doeshing/hookgate/internal/application/batch"
	"github.com/doeshing/hookgate/internal/infrastructure/hookio"
)

// MaxEventLineBytes bounds one JSON-lines event record.
const MaxEventLineBytes = 16 << 20

// NewLineScanner returns a scanner sized for hook records.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxEventLineBytes)
	return scanner
}

// ReadEventLines decodes one event per non-blank line. A line that fails to
// decode becomes an item carrying the error so the caller can report it in place.
func ReadEventLines(r io.Reader) ([]batch.Item, error) {
	scanner := NewLineScanner(r)
	var items []batch.Item
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		ev, err := hookio.ParseEvent(data)
		items = append(items, batch.Item{Index: len(items), Event: ev, Err: wrapLine(line, err)})
	}
	if err := scanner.Err(); err != nil {
		return items, fmt.Errorf("read events: %w", err)
	}
	return items, nil
}

func wrapLine(line int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("line %d: %w", line, err)
}

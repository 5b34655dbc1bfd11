package helpers

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptForYesNo asks a yes/no question. Empty input or a read error
// (for example EOF on a non-interactive stdin) yields defaultValue.
func PromptForYesNo(out io.Writer, reader *bufio.Reader, question string, defaultValue bool) bool {
	hint := "[y/N]"
	if defaultValue {
		hint = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s: ", question, hint)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultValue
	}
}

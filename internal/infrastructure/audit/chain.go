package audit

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/doeshing/hookgate/internal/domain"
)

// tailChunk is how far readLastLine reads back per step.
const tailChunk = 64 * 1024

// SealEntry links entry to prev: PrevHash is set to prev and Hash to the
// SHA-256 of prev followed by the canonical JSON of the record without Hash.
// The returned entry is in canonical form, so re-encoding a decoded line
// reproduces the bytes that were hashed.
func SealEntry(entry domain.LogEntry, prev string) (domain.LogEntry, error) {
	canonical, err := canonicalize(entry)
	if err != nil {
		return entry, err
	}
	canonical.PrevHash = prev
	sum, err := entryHash(canonical)
	if err != nil {
		return entry, err
	}
	canonical.Hash = sum
	return canonical, nil
}

func canonicalize(entry domain.LogEntry) (domain.LogEntry, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return entry, err
	}
	var out domain.LogEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return entry, err
	}
	return out, nil
}

func entryHash(entry domain.LogEntry) (string, error) {
	entry.Hash = ""
	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(entry.PrevHash))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChainBreak is a line whose links do not check out.
type ChainBreak struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ChainReport summarizes a verification pass over an audit stream.
type ChainReport struct {
	Path     string       `json:"path"`
	Entries  int          `json:"entries"`
	Sealed   int          `json:"sealed"`
	LastHash string       `json:"last_hash,omitempty"`
	Breaks   []ChainBreak `json:"breaks,omitempty"`
}

// Intact reports whether no break was found.
func (r ChainReport) Intact() bool {
	return len(r.Breaks) == 0
}

// VerifyChain walks the stream at path and checks every sealed record
// against its predecessor. Records written before sealing existed are
// counted but not checked, as long as they precede the first sealed one.
// After a break, checking resumes from the broken record so each tampered
// spot is reported once. Removing trailing records is not detectable here;
// compare LastHash against a copy kept elsewhere for that.
func VerifyChain(ctx context.Context, path string) (ChainReport, error) {
	report := ChainReport{Path: path}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, tailChunk), maxLineBytes)
	var (
		prev   string
		sealed bool
		resync bool
		line   int
	)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return report, err
		}
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		report.Entries++

		var entry domain.LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			report.Breaks = append(report.Breaks, ChainBreak{Line: line, Reason: "malformed record"})
			resync = true
			continue
		}
		if entry.Hash == "" {
			if sealed {
				report.Breaks = append(report.Breaks, ChainBreak{Line: line, ID: entry.ID, Reason: "record is not sealed"})
				resync = true
			}
			continue
		}
		report.Sealed++
		if !resync && entry.PrevHash != prev {
			report.Breaks = append(report.Breaks, ChainBreak{Line: line, ID: entry.ID, Reason: "prev_hash does not match the preceding record"})
		}
		if want, err := entryHash(entry); err != nil || want != entry.Hash {
			report.Breaks = append(report.Breaks, ChainBreak{Line: line, ID: entry.ID, Reason: "hash does not match the record"})
		}
		prev = entry.Hash
		sealed = true
		resync = false
	}
	report.LastHash = prev
	return report, scanner.Err()
}

// readLastLine returns the last non-empty line of the first size bytes of path.
func readLastLine(path string, size int64) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf []byte
	for end := size; end > 0 && len(buf) < maxLineBytes; {
		start := end - tailChunk
		if start < 0 {
			start = 0
		}
		part := make([]byte, end-start)
		if _, err := file.ReadAt(part, start); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(part, buf...)
		end = start

		trimmed := bytes.TrimRight(buf, "\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return trimmed[i+1:], nil
		}
	}
	return bytes.TrimRight(buf, "\r\n"), nil
}

// lastHash extracts the hash of the final record in path, or "" when the
// stream is empty or its final record is unsealed or unreadable.
func lastHash(path string, size int64) (string, error) {
	line, err := readLastLine(path, size)
	if err != nil || len(line) == 0 {
		return "", err
	}
	var tail struct {
		Hash string `json:"hash"`
	}
	if json.Unmarshal(line, &tail) != nil {
		return "", nil
	}
	return tail.Hash, nil
}

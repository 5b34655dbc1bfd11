package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// maxLineBytes bounds one audit line when reading the stream back.
const maxLineBytes = 16 * 1024 * 1024

// JSONLStore appends audit records to a jsonl file. Each record is written
// with a single write on an O_APPEND descriptor so concurrent processes
// sharing the file never interleave partial lines. Records are sealed into a
// hash chain under an exclusive file lock; the chain head is re-read from
// the file whenever another writer appended since this store's last write.
type JSONLStore struct {
	path string
	mu   sync.Mutex
	file *os.File

	head string
	end  int64
}

// NewJSONLStore creates a store backed by path. The file is opened lazily.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Append implements ports.AuditSink.
func (s *JSONLStore) Append(entry domain.LogEntry) error {
	_, err := s.AppendSealed(entry)
	return err
}

// AppendSealed chains entry to the last record in the stream, appends it and
// returns the sealed entry.
func (s *JSONLStore) AppendSealed(entry domain.LogEntry) (domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return entry, fmt.Errorf("%w: %v", domain.ErrLogWrite, err)
	}
	if err := lockFile(s.file); err != nil {
		return entry, fmt.Errorf("%w: lock: %v", domain.ErrLogWrite, err)
	}
	defer unlockFile(s.file)

	info, err := s.file.Stat()
	if err != nil {
		return entry, fmt.Errorf("%w: %v", domain.ErrLogWrite, err)
	}
	if info.Size() != s.end {
		head, err := lastHash(s.path, info.Size())
		if err != nil {
			return entry, fmt.Errorf("%w: read chain head: %v", domain.ErrLogWrite, err)
		}
		s.head, s.end = head, info.Size()
	}

	sealed, err := SealEntry(entry, s.head)
	if err != nil {
		return entry, fmt.Errorf("%w: encode: %v", domain.ErrLogWrite, err)
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return entry, fmt.Errorf("%w: encode: %v", domain.ErrLogWrite, err)
	}
	data = append(data, '\n')

	if _, err := s.file.Write(data); err != nil {
		s.end = -1
		return entry, fmt.Errorf("%w: %v", domain.ErrLogWrite, err)
	}
	s.head, s.end = sealed.Hash, s.end+int64(len(data))
	return sealed, nil
}

func (s *JSONLStore) open() error {
	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.AuditFilePermissions)
	if err != nil {
		return err
	}
	s.file = file
	s.head, s.end = "", 0
	return nil
}

// Close implements ports.AuditSink.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Path returns the backing file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Query scans the stream and returns the most recent matching entries in
// the order they were written. Malformed lines are skipped.
func (s *JSONLStore) Query(ctx context.Context, q domain.AuditQuery) ([]domain.LogEntry, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultAuditQueryLimit
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var entries []domain.LogEntry
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if !q.Matches(entry) {
			continue
		}
		entries = append(entries, entry)
		if len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

// Verify checks the hash chain of the stream.
func (s *JSONLStore) Verify(ctx context.Context) (ChainReport, error) {
	return VerifyChain(ctx, s.path)
}

var (
	_ ChainedSink       = (*JSONLStore)(nil)
	_ ports.AuditReader = (*JSONLStore)(nil)
)

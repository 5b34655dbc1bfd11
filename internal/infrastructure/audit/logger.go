// Package audit persists one record per evaluated event.
//
// Evaluations hand entries to Logger.Log. A single writer goroutine appends
// them to every sink in the order they were logged. When the queue is full
// Log waits for room up to SendTimeout, so bursts slow callers down instead
// of losing records; an entry is only dropped when the writer is stuck for
// that long or the logger is closed, and Log reports the drop to the caller.
// Close stops intake and drains the queue before closing the sinks. A failed
// sink append is reported on the diagnostic logger.
package audit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// ChainedSink links each entry to its predecessor while appending it and
// returns the sealed entry, which the sinks after it receive.
type ChainedSink interface {
	ports.AuditSink
	AppendSealed(entry domain.LogEntry) (domain.LogEntry, error)
}

// Logger is the asynchronous audit writer.
type Logger struct {
	// SendTimeout bounds how long Log waits for room in a full queue.
	SendTimeout time.Duration

	ch    chan domain.LogEntry
	sinks []ports.AuditSink
	log   ports.Logger
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewLogger builds a writer with a queue of buffer entries.
func NewLogger(log ports.Logger, buffer int, sinks ...ports.AuditSink) *Logger {
	if buffer <= 0 {
		buffer = domain.DefaultAuditBufferSize
	}
	return &Logger{
		SendTimeout: domain.DefaultAuditSendTimeout,
		ch:          make(chan domain.LogEntry, buffer),
		sinks:       sinks,
		log:         log,
	}
}

// Start launches the writer goroutine.
func (l *Logger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.drain()
	}()
}

// Log implements ports.AuditLogger.
func (l *Logger) Log(entry domain.LogEntry) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return l.drop(entry, "logger closed")
	}
	select {
	case l.ch <- entry:
		return nil
	default:
	}

	timer := time.NewTimer(l.SendTimeout)
	defer timer.Stop()
	select {
	case l.ch <- entry:
		return nil
	case <-timer.C:
		return l.drop(entry, fmt.Sprintf("queue full for %s", l.SendTimeout))
	}
}

func (l *Logger) drop(entry domain.LogEntry, why string) error {
	l.dropped.Add(1)
	l.log.Warn("audit entry dropped", map[string]interface{}{
		"id":      entry.ID,
		"event":   string(entry.Event),
		"outcome": string(entry.Outcome),
		"reason":  why,
	})
	return fmt.Errorf("%w: entry %s dropped: %s", domain.ErrLogWrite, entry.ID, why)
}

// Close flushes queued entries and closes the sinks.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	started := l.started
	l.mu.Unlock()

	if started {
		l.wg.Wait()
	} else {
		l.drain()
	}

	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dropped returns the number of entries Log gave up on.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Failed returns the number of failed sink appends.
func (l *Logger) Failed() int64 {
	return l.failed.Load()
}

func (l *Logger) drain() {
	for entry := range l.ch {
		l.write(entry)
	}
}

func (l *Logger) write(entry domain.LogEntry) {
	for _, sink := range l.sinks {
		var err error
		if chained, ok := sink.(ChainedSink); ok {
			var sealed domain.LogEntry
			if sealed, err = chained.AppendSealed(entry); err == nil {
				entry = sealed
			}
		} else {
			err = sink.Append(entry)
		}
		if err != nil {
			l.failed.Add(1)
			l.log.Warn("audit append failed", map[string]interface{}{
				"id":    entry.ID,
				"error": err.Error(),
			})
		}
	}
}

var _ ports.AuditLogger = (*Logger)(nil)

package rules

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
	"github.com/doeshing/hookgate/internal/ports"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Store publishes the active rule set. Reload swaps the pointer; published
// sets are never mutated, so readers need no lock.
type Store struct {
	path     string
	loader   ports.RuleSetLoader
	log      ports.Logger
	current  atomic.Pointer[domain.RuleSet]
	onReload func(*domain.RuleSet)
}

// NewStore loads path immediately.
func NewStore(path string, loader ports.RuleSetLoader, log ports.Logger) *Store {
	s := &Store{path: filesystem.ExpandPath(path), loader: loader, log: log}
	s.current.Store(loader.Load(s.path))
	return s
}

// NewStaticStore publishes a fixed rule set (tests, simulations of unsaved documents).
func NewStaticStore(rs *domain.RuleSet) *Store {
	s := &Store{}
	s.current.Store(rs)
	return s
}

// Current implements ports.RuleSetProvider.
func (s *Store) Current() *domain.RuleSet {
	return s.current.Load()
}

// Path returns the watched document path.
func (s *Store) Path() string {
	return s.path
}

// OnReload registers a callback invoked after each swap. Call before Watch.
func (s *Store) OnReload(fn func(*domain.RuleSet)) {
	s.onReload = fn
}

// Reload re-reads the document and publishes the result.
func (s *Store) Reload() *domain.RuleSet {
	if s.loader == nil {
		return s.Current()
	}
	rs := s.loader.Load(s.path)
	s.current.Store(rs)
	s.log.Info("rule set reloaded", map[string]interface{}{
		"source":   rs.Source,
		"rules":    len(rs.Rules),
		"fallback": rs.Fallback,
	})
	if s.onReload != nil {
		s.onReload(rs)
	}
	return rs
}

// Watch reloads the rule set whenever its file changes, until ctx is done.
// The parent directory is watched so atomic renames by editors are seen.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case <-pending:
			pending = nil
			s.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("rule watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

var _ ports.RuleSetProvider = (*Store)(nil)

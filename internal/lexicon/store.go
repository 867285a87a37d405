package lexicon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Store publishes the current lexicon to concurrent readers. Readers take a
// snapshot with Current and never lock; reloads swap the pointer.
type Store struct {
	current atomic.Pointer[Lexicon]
	path    string

	mu        sync.Mutex
	listeners []func(*Lexicon)
}

// NewStore returns a store serving lex.
func NewStore(lex *Lexicon) *Store {
	s := &Store{}
	s.current.Store(lex)
	return s
}

// OpenStore loads the lexicon at path, or the embedded default when path is empty.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return NewStore(Default()), nil
	}
	lex, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s := NewStore(lex)
	s.path = path
	return s, nil
}

// Current returns the lexicon in effect.
func (s *Store) Current() *Lexicon {
	return s.current.Load()
}

// Path is the external file backing the store, empty for the embedded lexicon.
func (s *Store) Path() string { return s.path }

// OnReload registers a callback invoked after every successful reload.
func (s *Store) OnReload(fn func(*Lexicon)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the backing file. On failure the previous lexicon stays in effect.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	lex, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(lex)

	s.mu.Lock()
	listeners := append([]func(*Lexicon){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(lex)
	}
	log.Infof("lexicon reloaded from %s (%d variants)", s.path, len(lex.doc.Variants))
	return nil
}

// Watch reloads the lexicon whenever its file changes, until ctx is done.
// It returns immediately for the embedded lexicon.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create lexicon watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files by rename, which drops a file watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			s.reloadOrKeep("file change")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn("lexicon watcher overflowed, reloading")
				s.reloadOrKeep("watcher overflow")
				continue
			}
			log.Errorf("lexicon watcher error: %v", err)
		}
	}
}

// reloadOrKeep reloads from the watcher and logs a failure. The previous
// lexicon stays in effect when the file is invalid.
func (s *Store) reloadOrKeep(trigger string) {
	if err := s.Reload(); err != nil {
		log.Errorf("failed to reload lexicon after %s, keeping previous: %v", trigger, err)
	}
}

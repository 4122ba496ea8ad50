// Package killswitch gates signal admission behind an operator-controlled
// flag. The flag is backed by a file so an operator can engage it with
// `touch` even when the HTTP API is down; fsnotify keeps the in-memory
// state current.
package killswitch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"hedger/internal/logger"

	"github.com/fsnotify/fsnotify"
)

type Switch struct {
	path    string
	engaged atomic.Bool
}

// New creates a switch watching path. The switch is engaged iff the file
// exists. An empty path yields a switch that is only togglable via the API.
func New(path string) *Switch {
	s := &Switch{path: path}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			s.engaged.Store(true)
		}
	}
	return s
}

func (s *Switch) Engaged() bool { return s.engaged.Load() }

// Engage flips the switch on and materializes the flag file.
func (s *Switch) Engage(reason string) error {
	s.engaged.Store(true)
	logger.Warnf("kill switch ENGAGED: %s", reason)
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, []byte(reason+"\n"), 0o644)
}

// Disengage flips the switch off and removes the flag file.
func (s *Switch) Disengage() error {
	s.engaged.Store(false)
	logger.Warnf("kill switch disengaged")
	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch follows filesystem changes to the flag file until ctx is cancelled.
// Watching the parent directory catches creation of a not-yet-existing file.
func (s *Switch) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}
	logger.Infof("kill switch: watching %s", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != filepath.Clean(s.path) {
				continue
			}
			switch {
			case evt.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !s.engaged.Swap(true) {
					logger.Warnf("kill switch ENGAGED via flag file %s", s.path)
				}
			case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if s.engaged.Swap(false) {
					logger.Warnf("kill switch disengaged via flag file removal")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("kill switch watcher error: %v", err)
		}
	}
}

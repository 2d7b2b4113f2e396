// This file implements a file system watcher for the dump inbox. New or
// updated dump files dropped in the inbox directory trigger an import
// after a short debounce window.

package importer

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxWatcher watches a directory for legacy dump files and invokes a
// callback for each settled file.
type InboxWatcher struct {
	path          string
	onDump        func(path string)
	watcher       *fsnotify.Watcher
	changedPaths  map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
}

// NewInboxWatcher creates a watcher for the given inbox directory. onDump
// is called once per dump file after writes have quieted down.
func NewInboxWatcher(path string, onDump func(path string)) *InboxWatcher {
	return &InboxWatcher{
		path:          path,
		onDump:        onDump,
		changedPaths:  make(map[string]bool),
		debounceDelay: 2 * time.Second, // Wait for the copy to finish before importing
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching the inbox directory.
func (w *InboxWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return err
	}

	log.Printf("Dump inbox watcher started for: %s", w.path)

	go w.processEvents()

	return nil
}

// Stop stops the watcher.
func (w *InboxWatcher) Stop() error {
	close(w.stopChan)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *InboxWatcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Dump inbox watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	// Chmod fires on plain directory browsing, so it is never a dump drop.
	if event.Op == fsnotify.Chmod {
		return
	}

	hasRelevantOp := (event.Op&fsnotify.Create == fsnotify.Create) ||
		(event.Op&fsnotify.Write == fsnotify.Write)
	if !hasRelevantOp || !isDumpFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.changedPaths[event.Name] = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerImport)
	w.mu.Unlock()
}

func isDumpFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".sql" || ext == ".dump"
}

func (w *InboxWatcher) triggerImport() {
	w.mu.Lock()
	if len(w.changedPaths) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.changedPaths))
	for path := range w.changedPaths {
		paths = append(paths, path)
	}
	w.changedPaths = make(map[string]bool)
	w.mu.Unlock()

	log.Printf("Dump inbox watcher detected %d file(s), triggering import", len(paths))

	go func() {
		for _, path := range paths {
			w.onDump(path)
		}
	}()
}

package importer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, dir string) (*InboxWatcher, *[]string, *sync.Mutex) {
	t.Helper()
	var mu sync.Mutex
	var got []string
	w := NewInboxWatcher(dir, func(path string) {
		mu.Lock()
		got = append(got, path)
		mu.Unlock()
	})
	w.debounceDelay = 100 * time.Millisecond
	return w, &got, &mu
}

func TestInboxWatcherStartStop(t *testing.T) {
	w, _, _ := newTestWatcher(t, t.TempDir())
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestInboxWatcherTriggersOnDumpFile(t *testing.T) {
	dir := t.TempDir()
	w, got, mu := newTestWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	dumpPath := filepath.Join(dir, "backup_2009.sql")
	if err := os.WriteFile(dumpPath, []byte("insert into imoveis values (1);"), 0644); err != nil {
		t.Fatalf("write dump: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 1 || (*got)[0] != dumpPath {
		t.Errorf("expected one callback for %s, got %v", dumpPath, *got)
	}
}

func TestInboxWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, got, mu := newTestWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a dump"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 0 {
		t.Errorf("non-dump file must not trigger an import, got %v", *got)
	}
}

func TestIsDumpFile(t *testing.T) {
	cases := map[string]bool{
		"backup.sql":  true,
		"backup.SQL":  true,
		"backup.dump": true,
		"backup.txt":  false,
		"backup":      false,
	}
	for name, want := range cases {
		if got := isDumpFile(name); got != want {
			t.Errorf("isDumpFile(%q) = %v, want %v", name, got, want)
		}
	}
}

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/plan"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestPathLayout(t *testing.T) {
	s := tempVault(t)
	got, err := s.Path("2025-03-09")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(s.Root(), "DailyNotes", "25", "2025-03-09.md")
	if got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if _, err := s.Path("../etc/passwd"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("invalid key err = %v", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Plan\n\n- [ ] a\n\n---\n")
	if err := s.Write("2025-01-01", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("2025-01-01")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "DailyNotes", "25")); err != nil {
		t.Errorf("year directory not created: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Read("2025-01-01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("2025-01-01", []byte("original content"))
	if err := s.Write("2025-01-01", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("2025-01-01")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.DailyRoot(), "25", ".planpanel-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("2025-01-02", []byte("b"))
	_ = s.Write("2024-12-31", []byte("a"))
	// Not daily notes: wrong year folder, bad name, other extension.
	misplaced := filepath.Join(s.DailyRoot(), "24", "2025-01-05.md")
	_ = os.MkdirAll(filepath.Dir(misplaced), 0o755)
	_ = os.WriteFile(misplaced, []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(s.DailyRoot(), "25", "notes.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(s.DailyRoot(), "25", "2025-01-03.txt"), []byte("x"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].Key != "2024-12-31" || items[1].Key != "2025-01-02" {
		t.Errorf("order = %s, %s", items[0].Key, items[1].Key)
	}
	if items[0].Checksum == "" || items[0].UpdatedAt.IsZero() {
		t.Errorf("entry metadata missing: %+v", items[0])
	}
}

func TestList_NoDailyDir(t *testing.T) {
	s := tempVault(t)
	items, err := s.List()
	if err != nil || len(items) != 0 {
		t.Errorf("items = %v err = %v", items, err)
	}
}

func TestKeyForPath(t *testing.T) {
	s := tempVault(t)
	p, _ := s.Path("2025-07-04")
	if key, ok := s.KeyForPath(p); !ok || key != "2025-07-04" {
		t.Errorf("KeyForPath(%q) = %q, %v", p, key, ok)
	}
	for _, bad := range []string{
		filepath.Join(s.Root(), "2025-07-04.md"),
		filepath.Join(s.DailyRoot(), "24", "2025-07-04.md"),
		filepath.Join(s.DailyRoot(), "25", "2025-07-04.md.swp"),
		filepath.Join(s.DailyRoot(), "25", ".planpanel-tmp-123"),
	} {
		if _, ok := s.KeyForPath(bad); ok {
			t.Errorf("KeyForPath(%q) accepted", bad)
		}
	}
}

func TestLockSerializesKey(t *testing.T) {
	s := tempVault(t)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(plan.Key("2025-01-01"))
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/planpanel-does-not-exist-"+t.Name(), "")
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "planpanel-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name(), ""); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestNewFS_DailyDirEscape(t *testing.T) {
	if _, err := NewFS(t.TempDir(), "../outside"); err == nil {
		t.Error("expected error for daily dir outside the vault")
	}
}

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/checksum"
	"github.com/starford/planpanel/internal/plan"
)

// DefaultDailyDir is the vault directory holding daily notes.
const DefaultDailyDir = "DailyNotes"

// FS implements Provider on the local file system. Notes live at
// <root>/<dailyDir>/<YY>/<YYYY-MM-DD>.md.
type FS struct {
	root     string // absolute path to vault directory
	dailyDir string

	mu    sync.Mutex
	locks map[plan.Key]*sync.Mutex
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root, dailyDir string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if dailyDir == "" {
		dailyDir = DefaultDailyDir
	}
	cleaned := filepath.Clean(dailyDir)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return nil, fmt.Errorf("storage: daily dir must stay inside the vault: %s", dailyDir)
	}
	return &FS{root: abs, dailyDir: cleaned, locks: make(map[plan.Key]*sync.Mutex)}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string { return f.root }

// DailyRoot returns the absolute daily-notes directory.
func (f *FS) DailyRoot() string { return filepath.Join(f.root, f.dailyDir) }

// RelPath returns the vault-relative path of the note for key.
func (f *FS) RelPath(key plan.Key) (string, error) {
	t, err := key.Time()
	if err != nil {
		return "", fmt.Errorf("storage: %w: %q", apperr.ErrInvalidInput, key)
	}
	return filepath.Join(f.dailyDir, t.Format("06"), string(key)+".md"), nil
}

// Path returns the absolute path of the note for key.
func (f *FS) Path(key plan.Key) (string, error) {
	rel, err := f.RelPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, rel), nil
}

// Read returns the raw bytes of the note for key.
func (f *FS) Read(key plan.Key) ([]byte, error) {
	abs, err := f.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(key plan.Key, content []byte) error {
	abs, err := f.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".planpanel-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// List walks the daily directory and returns every note whose name and
// location match a plan key, ordered by key.
func (f *FS) List() ([]Entry, error) {
	base := f.DailyRoot()
	var out []Entry
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, os.ErrNotExist) && p == base {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		key, ok := f.KeyForPath(p)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, Entry{
			Key:       key,
			Path:      p,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// KeyForPath maps an absolute note path back to its key. Only paths at the
// canonical location of their key are accepted.
func (f *FS) KeyForPath(abs string) (plan.Key, bool) {
	name := filepath.Base(abs)
	if !strings.HasSuffix(name, ".md") {
		return "", false
	}
	key, err := plan.ParseKey(strings.TrimSuffix(name, ".md"))
	if err != nil {
		return "", false
	}
	want, err := f.Path(key)
	if err != nil || filepath.Clean(abs) != want {
		return "", false
	}
	return key, true
}

// Lock serializes writers of the note for key within this process.
func (f *FS) Lock(key plan.Key) func() {
	f.mu.Lock()
	l, ok := f.locks[key]
	if !ok {
		l = &sync.Mutex{}
		f.locks[key] = l
	}
	f.mu.Unlock()

	l.Lock()
	return l.Unlock
}

var _ Provider = (*FS)(nil)

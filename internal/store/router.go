package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	dbExt = ".db"

	// DefaultMaxOpen bounds the database handles a router keeps open. The
	// least recently used one is closed when another project is opened.
	DefaultMaxOpen = 32
)

// ProjectInfo describes one project database in the router directory.
type ProjectInfo struct {
	Name     string
	DBPath   string
	RootPath string
}

// StoreRouter maps project names to their databases, one file per project
// in a shared directory. Handles are opened lazily.
type StoreRouter struct {
	dir  string
	mu   sync.Mutex
	open *lru.Cache[string, *Store]
}

// NewRouter uses the per-user cache directory.
func NewRouter() (*StoreRouter, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return NewRouterWithDir(dir)
}

// NewRouterWithDir uses dir, creating it if needed.
func NewRouterWithDir(dir string) (*StoreRouter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	open, err := lru.NewWithEvict(DefaultMaxOpen, func(name string, s *Store) {
		if err := s.Close(); err != nil {
			slog.Warn("router.evict", "project", name, "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &StoreRouter{dir: dir, open: open}, nil
}

func (r *StoreRouter) path(name string) string {
	return filepath.Join(r.dir, name+dbExt)
}

// ForProject returns the store of the named project, creating its database
// on first use.
func (r *StoreRouter) ForProject(name string) (*Store, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.open.Get(name); ok {
		return s, nil
	}
	s, err := OpenInDir(r.dir, name)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", name, err)
	}
	r.open.Add(name, s)
	return s, nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid project name: %q", name)
	}
	return nil
}

// names lists project databases in the directory, sorted.
func (r *StoreRouter) names() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("readdir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), dbExt) {
			out = append(out, strings.TrimSuffix(e.Name(), dbExt))
		}
	}
	slices.Sort(out)
	return out, nil
}

// ListProjects returns every project database with the root path recorded
// in it. A database that cannot be opened is listed without a root.
func (r *StoreRouter) ListProjects() ([]*ProjectInfo, error) {
	names, err := r.names()
	if err != nil {
		return nil, err
	}
	out := make([]*ProjectInfo, 0, len(names))
	for _, name := range names {
		info := &ProjectInfo{Name: name, DBPath: r.path(name)}
		if s, err := r.ForProject(name); err == nil {
			if p, _ := s.GetProject(name); p != nil {
				info.RootPath = p.RootPath
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// HasProject reports whether the project's database exists, without
// opening it.
func (r *StoreRouter) HasProject(name string) bool {
	if validName(name) != nil {
		return false
	}
	_, err := os.Stat(r.path(name))
	return err == nil
}

// DeleteProject closes the project's store and removes its database with
// the WAL and shared-memory files.
func (r *StoreRouter) DeleteProject(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open.Remove(name)

	var errs []error
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := r.path(name) + suffix
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("router.delete", "project", name)
	return nil
}

// Dir returns the directory holding the project databases.
func (r *StoreRouter) Dir() string { return r.dir }

// CloseAll closes every open store.
func (r *StoreRouter) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open.Purge()
}

// Package watcher re-indexes stored corpora when their files change.
//
// Each registered corpus is reduced to a fingerprint: an xxh3 digest over the
// path, size and mtime of every file the pipeline would read. A corpus is
// re-checked on its own schedule, which grows with its file count.
package watcher

import (
	"context"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/typerecon/internal/config"
	"github.com/DeusData/typerecon/internal/discover"
	"github.com/DeusData/typerecon/internal/store"
)

const (
	tick        = 1 * time.Second
	maxInterval = 60 * time.Second
	filesPerSec = 500
)

// Fingerprint summarizes a corpus tree. Two fingerprints are equal when no
// tracked file was added, removed, resized or touched.
type Fingerprint struct {
	Files  int
	Digest uint64
}

// IndexFunc re-indexes one project.
type IndexFunc func(ctx context.Context, project, root string) error

type corpusState struct {
	last     Fingerprint
	seen     bool
	interval time.Duration
	due      time.Time
}

// Watcher polls the projects of a router and calls its IndexFunc for every
// corpus whose fingerprint changed since the last successful index.
type Watcher struct {
	router  *store.StoreRouter
	index   IndexFunc
	corpora map[string]*corpusState
	only    map[string]bool
	ctx     context.Context
}

func New(r *store.StoreRouter, index IndexFunc) *Watcher {
	return &Watcher{
		router:  r,
		index:   index,
		corpora: make(map[string]*corpusState),
		ctx:     context.Background(),
	}
}

// Only restricts polling to the named projects.
func (w *Watcher) Only(names ...string) {
	w.only = make(map[string]bool, len(names))
	for _, n := range names {
		w.only[n] = true
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	projects, err := w.router.ListProjects()
	if err != nil {
		slog.Warn("watcher.list_projects", "err", err)
		return
	}
	now := time.Now()
	for _, p := range projects {
		if len(w.only) > 0 && !w.only[p.Name] {
			continue
		}
		st, err := w.router.ForProject(p.Name)
		if err != nil {
			continue
		}
		proj, err := st.GetProject(p.Name)
		if err != nil || proj == nil {
			continue
		}
		cs := w.corpora[p.Name]
		if cs == nil {
			cs = &corpusState{}
			w.corpora[p.Name] = cs
		} else if now.Before(cs.due) {
			continue
		}
		w.check(proj.Name, proj.RootPath, cs)
	}
}

// check compares the current fingerprint with the last indexed one. The
// first check only records a baseline. A failed index keeps the old
// fingerprint so the next check retries.
func (w *Watcher) check(name, root string, cs *corpusState) {
	if _, err := os.Stat(root); err != nil {
		slog.Warn("watcher.root_gone", "project", name, "path", root)
		cs.due = time.Now().Add(maxInterval)
		return
	}
	fp, err := Take(w.ctx, root)
	if err != nil {
		slog.Warn("watcher.fingerprint", "project", name, "err", err)
		cs.due = time.Now().Add(cs.interval)
		return
	}
	next := interval(fp.Files)
	defer func() { cs.due = time.Now().Add(cs.interval) }()

	switch {
	case !cs.seen:
		slog.Debug("watcher.baseline", "project", name, "files", fp.Files)
	case fp == cs.last:
	default:
		slog.Info("watcher.changed", "project", name, "files", fp.Files)
		if err := w.index(w.ctx, name, root); err != nil {
			slog.Warn("watcher.index", "project", name, "err", err)
			cs.interval = next
			return
		}
	}
	cs.last, cs.seen, cs.interval = fp, true, next
}

// Take fingerprints the files under root selected by root's .typerecon.yaml,
// plus the config and ignore files themselves.
func Take(ctx context.Context, root string) (Fingerprint, error) {
	cfg := config.Load(root)
	files, err := discover.Discover(ctx, root, &discover.Options{
		Extensions: cfg.EffectiveExtensions(),
		Ignore:     cfg.Discover.Ignore,
	})
	if err != nil {
		return Fingerprint{}, err
	}

	paths := make([]string, 0, len(files)+2)
	for _, f := range files {
		paths = append(paths, f.RelPath)
	}
	slices.Sort(paths)
	paths = append(paths, config.FileName, discover.IgnoreFileName)

	h := xxh3.New()
	var buf [16]byte
	fp := Fingerprint{}
	for i, rel := range paths {
		info, err := os.Stat(filepath.Join(root, rel))
		if err != nil {
			continue
		}
		if i < len(files) {
			fp.Files++
		}
		h.WriteString(rel)
		binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
		binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
		h.Write(buf[:])
	}
	fp.Digest = h.Sum64()
	return fp, nil
}

// interval is one second plus one second per 500 files, capped at a minute.
func interval(files int) time.Duration {
	return min(tick+time.Duration(files/filesPerSec)*time.Second, maxInterval)
}

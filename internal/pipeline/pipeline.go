package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/typerecon/internal/config"
	"github.com/DeusData/typerecon/internal/discover"
	"github.com/DeusData/typerecon/internal/store"
)

// Pipeline indexes one corpus directory into a store.
type Pipeline struct {
	ctx         context.Context
	Store       *store.Store
	RepoPath    string
	ProjectName string
	Config      *config.Config
}

// Summary describes one Run.
type Summary struct {
	Project    string
	Database   string
	Files      int
	Duplicates int // files skipped because an identical file was already read
	Bytes      int64
	Noop       bool // nothing changed since the stored run
	Entities   int
	Functions  int
	Conflicts  int
	Warnings   int
	Unresolved int
	Mismatches int
	Elapsed    time.Duration
}

// New creates a Pipeline. Configuration is loaded from the corpus root.
func New(ctx context.Context, s *store.Store, repoPath string) *Pipeline {
	return &Pipeline{
		ctx:         ctx,
		Store:       s,
		RepoPath:    repoPath,
		ProjectName: ProjectNameFromPath(repoPath),
		Config:      config.Load(repoPath),
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// checkCancel returns ctx.Err() if the pipeline's context has been cancelled.
func (p *Pipeline) checkCancel() error {
	return p.ctx.Err()
}

// Run discovers, parses, links and lays out the corpus, then replaces the
// stored model in a single transaction. When every file hash and the config
// fingerprint match the stored run the store is left untouched.
func (p *Pipeline) Run() (*Summary, error) {
	start := time.Now()
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath)

	if err := p.checkCancel(); err != nil {
		return nil, err
	}

	loaded, err := load(p.ctx, p.RepoPath, p.Config)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(loaded)+1)
	for _, f := range loaded {
		hashes[f.info.RelPath] = f.hash
	}
	hashes[ConfigHashKey] = p.Config.Fingerprint()

	sum := &Summary{Project: p.ProjectName, Database: p.Store.Path(), Files: len(loaded)}
	if p.unchanged(hashes) {
		slog.Info("incremental.noop", "project", p.ProjectName, "files", len(loaded))
		sum.Noop = true
		sum.Entities, _ = p.Store.CountEntities(p.ProjectName)
		sum.Functions, _ = p.Store.CountFunctions(p.ProjectName)
		sum.Elapsed = time.Since(start)
		return sum, nil
	}

	sources, dups := dedupe(loaded)
	sum.Duplicates = dups
	res, err := Build(p.ctx, sources, p.Config)
	if err != nil {
		return nil, err
	}

	if err := p.Store.WithTransaction(p.ctx, func(txStore *store.Store) error {
		return Persist(txStore, p.ProjectName, p.RepoPath, res, hashes)
	}); err != nil {
		return nil, err
	}
	p.Store.Checkpoint(p.ctx)

	sum.Bytes = res.Bytes
	sum.Entities = res.Corpus.Len()
	sum.Functions = len(res.Corpus.Functions())
	sum.Conflicts = len(res.Conflicts)
	sum.Warnings = res.Warnings
	sum.Unresolved = res.Resolve.Unresolved
	sum.Mismatches = res.Layout.Mismatches
	sum.Elapsed = time.Since(start)
	slog.Info("pipeline.done",
		"project", p.ProjectName,
		"files", humanize.Comma(int64(sum.Files)),
		"bytes", humanize.Bytes(uint64(sum.Bytes)),
		"entities", humanize.Comma(int64(sum.Entities)),
		"functions", humanize.Comma(int64(sum.Functions)),
		"elapsed", sum.Elapsed)
	return sum, nil
}

// ConfigHashKey holds the config fingerprint in the stored hash set. A
// relative file path is never empty.
const ConfigHashKey = ""

// unchanged reports whether hashes equals a non-empty stored hash set.
// Aggregation is cross-file, so any difference means a full rebuild,
// including a change of the effective config.
func (p *Pipeline) unchanged(hashes map[string]string) bool {
	stored, err := p.Store.GetFileHashes(p.ProjectName)
	if err != nil || len(stored) == 0 {
		return false
	}
	return maps.Equal(stored, hashes)
}

type loadedFile struct {
	info discover.FileInfo
	data []byte
	hash string
}

// LoadSources discovers and reads the corpus under root without touching a
// store. Files with identical content are read once.
func LoadSources(ctx context.Context, root string, cfg *config.Config) ([]Source, error) {
	if cfg == nil {
		cfg = config.Load(root)
	}
	loaded, err := load(ctx, root, cfg)
	if err != nil {
		return nil, err
	}
	sources, _ := dedupe(loaded)
	return sources, nil
}

func load(ctx context.Context, root string, cfg *config.Config) ([]loadedFile, error) {
	files, err := discover.Discover(ctx, root, &discover.Options{
		Extensions: cfg.EffectiveExtensions(),
		Ignore:     cfg.Discover.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))
	return readFiles(ctx, files, cfg.EffectiveWorkers())
}

// readFiles reads and hashes files in parallel. A file that vanished or
// cannot be read is logged and left out.
func readFiles(ctx context.Context, files []discover.FileInfo, workers int) ([]loadedFile, error) {
	results := make([]*loadedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(workers, len(files))))
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				slog.Warn("pipeline.read", "path", f.RelPath, "err", err)
				return nil
			}
			results[i] = &loadedFile{info: f, data: data, hash: hashBytes(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]loadedFile, 0, len(files))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// dedupe drops files whose content equals an earlier file in path order.
func dedupe(files []loadedFile) ([]Source, int) {
	seen := make(map[string]string, len(files))
	sources := make([]Source, 0, len(files))
	dups := 0
	for _, f := range files {
		if first, ok := seen[f.hash]; ok {
			slog.Info("pipeline.duplicate_file", "path", f.info.RelPath, "same_as", first)
			dups++
			continue
		}
		seen[f.hash] = f.info.RelPath
		sources = append(sources, Source{Path: f.info.RelPath, Data: f.data})
	}
	return sources, dups
}

// hashBytes returns the hex xxh3 digest of data.
func hashBytes(data []byte) string {
	h := xxh3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

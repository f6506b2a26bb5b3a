package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/typerecon/internal/bodyscan"
	"github.com/DeusData/typerecon/internal/config"
	"github.com/DeusData/typerecon/internal/corpus"
	"github.com/DeusData/typerecon/internal/extract"
	"github.com/DeusData/typerecon/internal/layout"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/resolve"
)

// Source is one input file held in memory.
type Source struct {
	Path string // relative, slash-separated; recorded as entity provenance
	Data []byte
}

// Result is the fully linked and laid-out model of a set of sources.
type Result struct {
	Corpus    *model.Corpus
	Conflicts []corpus.Conflict
	Aggregate corpus.Stats
	Resolve   resolve.Stats
	Layout    layout.Stats
	Files     int
	Bytes     int64
	Warnings  int
	Skipped   int
}

// Build runs the four phases over sources: parallel per-file parsing, then
// sequential aggregation in path order, then resolution, then layout.
// Only cancellation returns an error; malformed input becomes warnings.
func Build(ctx context.Context, sources []Source, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	res := &Result{Files: len(sources)}
	for _, s := range sources {
		res.Bytes += int64(len(s.Data))
	}

	files, err := passParse(ctx, sources, cfg)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		res.Warnings += len(f.Warnings)
		res.Skipped += f.Skipped
	}

	t := time.Now()
	agg := corpus.Aggregate(files)
	res.Corpus = agg.Corpus()
	res.Conflicts = agg.Conflicts()
	res.Aggregate = agg.Stats()
	slog.Info("pass.timing", "pass", "aggregate", "elapsed", time.Since(t))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	r := resolve.New(res.Corpus, resolve.Options{
		Workers:   cfg.EffectiveWorkers(),
		CacheSize: cfg.EffectiveCacheSize(),
	})
	res.Resolve, err = r.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	slog.Info("pass.timing", "pass", "resolve", "elapsed", time.Since(t))

	t = time.Now()
	res.Layout = layout.New(res.Corpus, cfg.EffectiveABI()).Run()
	slog.Info("pass.timing", "pass", "layout", "elapsed", time.Since(t))
	return res, ctx.Err()
}

// passParse parses every source on a bounded worker pool. Workers share
// nothing; results land in their input slot so aggregation order does not
// depend on scheduling.
func passParse(ctx context.Context, sources []Source, cfg *config.Config) ([]*extract.FileResult, error) {
	t := time.Now()
	results := make([]*extract.FileResult, len(sources))
	scan := cfg.EffectiveScanBodies()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(cfg.EffectiveWorkers(), len(sources))))
	for i, s := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			var opts extract.Options
			if scan {
				opts.LocalTypes = bodyscan.ForFile(s.Path)
			}
			r := extract.ParseFile(s.Path, s.Data, opts)
			for _, w := range r.Warnings {
				slog.Warn("parse.skip", "file", s.Path, "line", w.Line, "reason", w.Reason, "text", w.Text)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Info("pass.timing", "pass", "parse", "files", len(sources), "elapsed", time.Since(t))
	return results, nil
}

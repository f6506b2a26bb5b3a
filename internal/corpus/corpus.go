// Package corpus merges per-file parse results into one model.Corpus. It is a
// single-writer step: files are applied one at a time in a fixed order, so
// merge and duplicate decisions are reproducible.
package corpus

import (
	"log/slog"
	"sort"

	"github.com/DeusData/typerecon/internal/extract"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

// Provenance locates a declaration.
type Provenance struct {
	File string
	Line int
}

// Conflict records a second full declaration that lost to the first.
type Conflict struct {
	Key     string
	Kept    Provenance
	Dropped Provenance
}

// Stats counts aggregation decisions.
type Stats struct {
	Entities         int
	Functions        int
	Merged           int // stubs replaced by a full declaration
	ForwardsIgnored  int // stubs arriving after a full declaration
	DuplicateStubs   int
	Conflicts        int
	DuplicateAddress int // function blocks seen twice
}

// Aggregator owns the corpus while files are merged into it.
type Aggregator struct {
	corpus    *model.Corpus
	byKey     map[string]model.EntityID
	addrs     map[uint64]bool
	conflicts []Conflict
	stats     Stats
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		corpus: model.NewCorpus(),
		byKey:  make(map[string]model.EntityID),
		addrs:  make(map[uint64]bool),
	}
}

// Aggregate merges results in path order and returns the aggregator.
func Aggregate(results []*extract.FileResult) *Aggregator {
	sorted := make([]*extract.FileResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	a := New()
	for _, r := range sorted {
		a.AddFile(r)
	}
	return a
}

// AddFile merges one file's entities and functions in source order.
func (a *Aggregator) AddFile(r *extract.FileResult) {
	for _, e := range r.Entities {
		a.Add(e)
	}
	for _, f := range r.Functions {
		a.AddFunction(f)
	}
}

// Add merges e and returns the ID of the authoritative entity for its name.
func (a *Aggregator) Add(e *model.Entity) model.EntityID {
	key := typestr.Normalize(e.Key())
	id, ok := a.byKey[key]
	if !ok {
		assignOverloads(e)
		id = a.corpus.Add(e)
		a.byKey[key] = id
		a.stats.Entities++
		return id
	}

	existing := a.corpus.Entity(id)
	switch {
	case existing.IsStub() && !e.IsStub():
		slog.Info("corpus.merge", "key", key, "file", e.File, "line", e.Line,
			"forward_file", existing.File, "forward_line", existing.Line)
		assignOverloads(e)
		*existing = *e
		existing.ID = id
		a.stats.Merged++
	case !existing.IsStub() && e.IsStub():
		slog.Debug("corpus.forward_ignored", "key", key, "file", e.File, "line", e.Line)
		a.stats.ForwardsIgnored++
	case existing.IsStub() && e.IsStub():
		a.stats.DuplicateStubs++
	default:
		c := Conflict{
			Key:     key,
			Kept:    Provenance{File: existing.File, Line: existing.Line},
			Dropped: Provenance{File: e.File, Line: e.Line},
		}
		slog.Warn("corpus.duplicate", "key", key,
			"kept", c.Kept.File, "kept_line", c.Kept.Line,
			"dropped", c.Dropped.File, "dropped_line", c.Dropped.Line)
		a.conflicts = append(a.conflicts, c)
		a.stats.Conflicts++
	}
	return id
}

// AddFunction appends f unless a function at the same address was already seen.
func (a *Aggregator) AddFunction(f *model.Function) {
	if f.Address != 0 {
		if a.addrs[f.Address] {
			a.stats.DuplicateAddress++
			return
		}
		a.addrs[f.Address] = true
	}
	a.corpus.AddFunction(f)
	a.stats.Functions++
}

// Corpus returns the merged corpus.
func (a *Aggregator) Corpus() *model.Corpus { return a.corpus }

// Conflicts returns duplicate full declarations in encounter order.
func (a *Aggregator) Conflicts() []Conflict { return a.conflicts }

// Stats returns the aggregation counters.
func (a *Aggregator) Stats() Stats { return a.stats }

// assignOverloads numbers same-named members 0..N-1 in declaration order.
func assignOverloads(e *model.Entity) {
	seen := make(map[string]int, len(e.Members))
	for i := range e.Members {
		m := &e.Members[i]
		m.OverloadIndex = seen[m.Name]
		seen[m.Name]++
	}
}

// Package resolve links type references to entities and computes the
// BaseTypePath grouping key. It runs after the whole corpus is aggregated.
package resolve

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/typerecon/internal/abi"
	"github.com/DeusData/typerecon/internal/fqn"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

// DefaultCacheSize bounds the normalized-reference cache.
const DefaultCacheSize = 4096

// chunkSize is the number of descriptors one worker task resolves.
const chunkSize = 512

// Options configure a Resolver.
type Options struct {
	Workers   int // 0 means runtime.NumCPU()
	CacheSize int // 0 means DefaultCacheSize
}

// Stats counts resolution outcomes.
type Stats struct {
	References int
	Entity     int
	Primitive  int
	External   int
	Function   int
	Unresolved int
	Groups     int
}

type ref struct {
	id    model.EntityID
	class model.RefClass
}

// Resolver holds the name index of one corpus. The index is built once and
// only read afterwards, so lookups are safe from many goroutines.
type Resolver struct {
	corpus *model.Corpus
	exact  map[string]model.EntityID // normalized template-inclusive key
	bare   map[string]model.EntityID // normalized template-free name
	cache  *lru.Cache[string, ref]
	opts   Options
}

// New indexes c. When several entities share a template-free name the one
// with the lowest ID wins the bare slot.
func New(c *model.Corpus, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, ref](opts.CacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	r := &Resolver{
		corpus: c,
		exact:  make(map[string]model.EntityID, c.Len()),
		bare:   make(map[string]model.EntityID, c.Len()),
		cache:  cache,
		opts:   opts,
	}
	for _, e := range c.Entities() {
		r.exact[typestr.Normalize(e.Key())] = e.ID
		b := bareKey(e.FullyQualifiedName())
		if _, ok := r.bare[b]; !ok {
			r.bare[b] = e.ID
		}
	}
	return r
}

func bareKey(name string) string {
	return typestr.Normalize(fqn.StripTemplates(name))
}

// Resolve sets d.Target and d.Class. Template arguments are not visited.
func (r *Resolver) Resolve(d *model.TypeDescriptor) {
	switch {
	case !d.Valid():
		d.Target, d.Class = 0, model.RefUnresolved
		return
	case d.IsFunctionPointer:
		d.Target, d.Class = 0, model.RefFunction
		return
	}
	key := typestr.Key(d)
	if v, ok := r.cache.Get(key); ok {
		d.Target, d.Class = v.id, v.class
		return
	}
	v := r.lookup(d, key)
	r.cache.Add(key, v)
	d.Target, d.Class = v.id, v.class
}

func (r *Resolver) lookup(d *model.TypeDescriptor, key string) ref {
	if id, ok := r.exact[key]; ok {
		return ref{id: id, class: model.RefEntity}
	}
	if id, ok := r.bare[bareKey(d.QualifiedName())]; ok {
		// an instantiation links to the generic declaration only
		if !d.IsGeneric || len(r.corpus.Entity(id).TemplateArgs) == 0 {
			return ref{id: id, class: model.RefEntity}
		}
	}
	if len(d.Namespace) == 0 && abi.IsPrimitive(d.BaseName) {
		return ref{class: model.RefPrimitive}
	}
	slog.Debug("resolve.miss", "ref", key)
	return ref{class: model.RefExternal}
}

// Run resolves every descriptor in the corpus, in parallel against the
// finished index, then computes grouping keys.
func (r *Resolver) Run(ctx context.Context) (Stats, error) {
	var descs []*model.TypeDescriptor
	r.corpus.Descriptors(func(d *model.TypeDescriptor) { descs = append(descs, d) })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for start := 0; start < len(descs); start += chunkSize {
		chunk := descs[start:min(start+chunkSize, len(descs))]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			for _, d := range chunk {
				r.Resolve(d)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st := Stats{References: len(descs)}
	for _, d := range descs {
		switch d.Class {
		case model.RefEntity:
			st.Entity++
		case model.RefPrimitive:
			st.Primitive++
		case model.RefExternal:
			st.External++
		case model.RefFunction:
			st.Function++
		default:
			st.Unresolved++
		}
	}
	st.Groups = r.Group()
	return st, nil
}

// Group assigns BaseTypePath to every entity and returns the number of
// distinct groups.
//
// A vtable "X_vtbl" joins the group of X; a nested "X::Y" joins the group of
// its innermost enclosing entity. Both rules apply recursively, so a root,
// its nested types and all their vtables share the root's name.
func (r *Resolver) Group() int {
	g := grouper{r: r, path: make(map[model.EntityID]string), visiting: make(map[model.EntityID]bool)}
	groups := make(map[string]bool)
	for _, e := range r.corpus.Entities() {
		e.BaseTypePath = g.pathOf(e)
		groups[e.BaseTypePath] = true
	}
	return len(groups)
}

type grouper struct {
	r        *Resolver
	path     map[model.EntityID]string
	visiting map[model.EntityID]bool
}

func (g *grouper) pathOf(e *model.Entity) string {
	if p, ok := g.path[e.ID]; ok {
		return p
	}
	own := e.FullyQualifiedName()
	if g.visiting[e.ID] {
		return own
	}
	g.visiting[e.ID] = true
	defer delete(g.visiting, e.ID)

	p := own
	if owner := g.owner(e); owner != nil {
		p = g.pathOf(owner)
	}
	g.path[e.ID] = p
	return p
}

// owner returns the entity e belongs to, or nil for a root.
func (g *grouper) owner(e *model.Entity) *model.Entity {
	if base, ok := strings.CutSuffix(e.BaseName, "_vtbl"); ok && base != "" {
		name := fqn.Join(append(append([]string(nil), e.Namespace...), base)...)
		if o := g.find(name); o != nil && o.ID != e.ID {
			return o
		}
	}
	for k := len(e.Namespace); k >= 1; k-- {
		if o := g.find(fqn.Join(e.Namespace[:k]...)); o != nil && o.ID != e.ID {
			return o
		}
	}
	return nil
}

func (g *grouper) find(name string) *model.Entity {
	if id, ok := g.r.exact[typestr.Normalize(name)]; ok {
		return g.r.corpus.Entity(id)
	}
	if id, ok := g.r.bare[bareKey(name)]; ok {
		return g.r.corpus.Entity(id)
	}
	return nil
}

package model

import "strings"

// Corpus is the arena owning every entity and function of one run. Entities
// are addressed by EntityID and never removed; later passes mutate them in
// place.
type Corpus struct {
	entities  []*Entity
	byKey     map[string]EntityID
	functions []*Function
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{byKey: make(map[string]EntityID)}
}

// Add stores e, assigns its ID and indexes it by Key. The caller guarantees
// the key is not already present.
func (c *Corpus) Add(e *Entity) EntityID {
	c.entities = append(c.entities, e)
	e.ID = EntityID(len(c.entities))
	c.byKey[e.Key()] = e.ID
	return e.ID
}

// Entity returns the entity with the given ID, or nil.
func (c *Corpus) Entity(id EntityID) *Entity {
	if id <= 0 || int(id) > len(c.entities) {
		return nil
	}
	return c.entities[id-1]
}

// Lookup returns the ID of the entity with the given template-inclusive key.
func (c *Corpus) Lookup(key string) (EntityID, bool) {
	id, ok := c.byKey[key]
	return id, ok
}

// Entities returns all entities in insertion order.
func (c *Corpus) Entities() []*Entity { return c.entities }

// Len returns the number of entities.
func (c *Corpus) Len() int { return len(c.entities) }

// AddFunction appends a recovered function.
func (c *Corpus) AddFunction(f *Function) { c.functions = append(c.functions, f) }

// Functions returns recovered functions in insertion order.
func (c *Corpus) Functions() []*Function { return c.functions }

// Nested returns the entities declared directly inside id's scope.
func (c *Corpus) Nested(id EntityID) []*Entity {
	parent := c.Entity(id)
	if parent == nil {
		return nil
	}
	scope := parent.FullyQualifiedName()
	scopeT := parent.Key()
	var out []*Entity
	for _, e := range c.entities {
		if len(e.Namespace) == 0 {
			continue
		}
		ns := strings.Join(e.Namespace, "::")
		if ns == scope || ns == scopeT {
			out = append(out, e)
		}
	}
	return out
}

// Group returns every entity whose BaseTypePath equals path.
func (c *Corpus) Group(path string) []*Entity {
	var out []*Entity
	for _, e := range c.entities {
		if e.BaseTypePath == path {
			out = append(out, e)
		}
	}
	return out
}

// Descriptors calls fn for every type descriptor in the corpus.
func (c *Corpus) Descriptors(fn func(*TypeDescriptor)) {
	for _, e := range c.entities {
		e.Descriptors(fn)
	}
	for _, f := range c.functions {
		f.Descriptors(fn)
	}
}

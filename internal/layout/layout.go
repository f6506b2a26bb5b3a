// Package layout assigns byte offsets to members and sizes to entities. It
// runs after resolution, over the whole corpus, on one goroutine.
package layout

import (
	"log/slog"

	"github.com/DeusData/typerecon/internal/abi"
	"github.com/DeusData/typerecon/internal/model"
)

// Stats counts layout outcomes.
type Stats struct {
	Entities   int // entities laid out
	Mismatches int // computed offset differs from the source offset comment
	Unsized    int // member types whose size is unknown; they occupy no bytes
	Cycles     int // by-value containment cycles broken
}

type state uint8

const (
	pending state = iota
	visiting
	done
)

// Calculator lays out one corpus under one ABI model.
type Calculator struct {
	corpus *model.Corpus
	abi    abi.Model
	state  map[model.EntityID]state
	stats  Stats
}

// New returns a calculator for c.
func New(c *model.Corpus, m abi.Model) *Calculator {
	return &Calculator{corpus: c, abi: m, state: make(map[model.EntityID]state, c.Len())}
}

// Run lays out every entity. Dependencies (bases, by-value members, aliased
// and underlying types) are laid out first regardless of corpus order.
func (c *Calculator) Run() Stats {
	for _, e := range c.corpus.Entities() {
		c.entity(e)
	}
	return c.stats
}

// Stats returns the counters collected so far.
func (c *Calculator) Stats() Stats { return c.stats }

// SizeOf returns the size and alignment of a resolved descriptor. ok is false
// when the size cannot be known (external or stub types).
func (c *Calculator) SizeOf(d *model.TypeDescriptor) (size, align int64, ok bool) {
	if d.IsIndirect() || d.Class == model.RefFunction {
		size, align, ok = c.abi.PointerSize, c.abi.PointerSize, true
	} else {
		size, align, ok = c.scalar(d)
	}
	if !ok {
		return 0, 1, false
	}
	return size * count(d), align, true
}

// count is the number of elements an array descriptor holds, 1 otherwise.
func count(d *model.TypeDescriptor) int64 {
	if len(d.ArrayDims) > 0 {
		n := int64(1)
		for _, dim := range d.ArrayDims {
			n *= int64(dim)
		}
		return n
	}
	if d.IsArray && d.ArraySize > 0 {
		return int64(d.ArraySize)
	}
	return 1
}

func (c *Calculator) scalar(d *model.TypeDescriptor) (int64, int64, bool) {
	switch d.Class {
	case model.RefPrimitive:
		size, ok := c.abi.PrimitiveSize(d.BaseName)
		if !ok || size == 0 {
			return 0, 1, false
		}
		return size, abi.Align(size), true
	case model.RefEntity:
		e := c.corpus.Entity(d.Target)
		if e == nil {
			return 0, 1, false
		}
		c.entity(e)
		if !e.LaidOut {
			return 0, 1, false
		}
		return e.Size, e.Align, true
	}
	return 0, 1, false
}

func (c *Calculator) entity(e *model.Entity) {
	switch c.state[e.ID] {
	case done:
		return
	case visiting:
		slog.Warn("layout.cycle", "entity", e.Key(), "file", e.File, "line", e.Line)
		c.stats.Cycles++
		return
	}
	c.state[e.ID] = visiting
	defer func() { c.state[e.ID] = done }()

	switch e.Kind {
	case model.KindEnum:
		c.enum(e)
	case model.KindTypedef:
		c.typedef(e)
	case model.KindStruct, model.KindUnion:
		if e.IsStub() {
			return
		}
		c.aggregate(e)
	default:
		return
	}
	c.stats.Entities++
}

func (c *Calculator) enum(e *model.Entity) {
	size, align := c.abi.EnumSize, c.abi.EnumSize
	if e.Underlying != nil {
		if s, a, ok := c.SizeOf(e.Underlying); ok {
			size, align = s, a
		}
	}
	e.Size, e.Align, e.LaidOut = size, align, true
}

func (c *Calculator) typedef(e *model.Entity) {
	if e.Aliased == nil {
		// a function type alias has no object size
		e.Size, e.Align, e.LaidOut = 0, 1, true
		return
	}
	size, align, ok := c.SizeOf(e.Aliased)
	if !ok {
		return
	}
	e.Size, e.Align, e.LaidOut = size, align, true
}

// unit is the storage unit of the current bit-field run.
type unit struct {
	open   bool
	offset int64
	size   int64
	used   int
}

func (c *Calculator) aggregate(e *model.Entity) {
	var cursor int64
	maxAlign := int64(1)

	for i := range e.BaseTypes {
		b := &e.BaseTypes[i]
		size, align, ok := c.SizeOf(b)
		if !ok {
			slog.Debug("layout.base_unsized", "entity", e.Key(), "base", b.Raw)
			c.stats.Unsized++
			continue
		}
		cursor = roundUp(cursor, align)
		cursor += size
		maxAlign = max(maxAlign, align)
	}

	isUnion := e.Kind == model.KindUnion
	var bits unit
	var extent int64
	for i := range e.Members {
		m := &e.Members[i]
		size, align, ok := c.SizeOf(&m.Type)
		if !ok {
			slog.Debug("layout.member_unsized", "entity", e.Key(), "member", m.Name, "type", m.Type.Raw)
			c.stats.Unsized++
			size, align = 0, 1
		}
		if m.Alignment != nil && *m.Alignment > 0 {
			align = int64(*m.Alignment)
		}
		maxAlign = max(maxAlign, align)

		var off int64
		switch {
		case isUnion:
			off, m.BitOffset = 0, 0
			extent = max(extent, size)
		case m.IsBitField():
			off = c.bitField(m, &bits, &cursor, size, align)
		default:
			bits.open = false
			cursor = roundUp(cursor, align)
			off = cursor
			cursor += size
		}
		m.Offset = &off
		c.check(e, m)
	}
	if isUnion {
		cursor = extent
	}

	if e.Alignment != nil && *e.Alignment > 0 {
		maxAlign = max(maxAlign, int64(*e.Alignment))
	}
	size := roundUp(cursor, maxAlign)
	if size == 0 && len(e.BaseTypes) == 0 {
		// an empty class still occupies one byte
		size = 1
	}
	e.Size, e.Align, e.LaidOut = size, maxAlign, true
}

// bitField places m in the current storage unit, or opens a new one at the
// next aligned boundary when the run changes storage size or m would not fit.
// A zero width closes the run.
func (c *Calculator) bitField(m *model.Member, u *unit, cursor *int64, size, align int64) int64 {
	width := *m.BitFieldWidth
	if width == 0 {
		u.open = false
		*cursor = roundUp(*cursor, align)
		m.BitOffset = 0
		return *cursor
	}
	if u.open && u.size == size && int64(u.used+width) <= size*8 {
		m.BitOffset = u.used
		u.used += width
		return u.offset
	}
	*cursor = roundUp(*cursor, align)
	*u = unit{open: true, offset: *cursor, size: size, used: width}
	*cursor += size
	m.BitOffset = 0
	return u.offset
}

func (c *Calculator) check(e *model.Entity, m *model.Member) {
	if m.SourceOffset == nil || *m.SourceOffset == *m.Offset {
		return
	}
	c.stats.Mismatches++
	slog.Debug("layout.offset_mismatch", "entity", e.Key(), "member", m.Name,
		"computed", *m.Offset, "source", *m.SourceOffset)
}

func roundUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

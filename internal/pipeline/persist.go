package pipeline

import (
	"fmt"

	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/store"
	"github.com/DeusData/typerecon/internal/typestr"
)

// Repository receives a built model. *store.Store implements it.
type Repository interface {
	UpsertProject(name, rootPath string) error
	ReplaceFileHashes(project string, hashes map[string]string) error
	DeleteEntities(project string) error
	DeleteFunctions(project string) error
	InsertEntityBatch(entities []*store.Entity) (map[string]int64, error)
	InsertMemberBatch(members []*store.Member) error
	InsertBaseBatch(bases []*store.Base) error
	InsertFunctionBatch(fns []*store.Function) error
}

var _ Repository = (*store.Store)(nil)

// Persist replaces everything stored for project with r. Callers wrap it in
// a transaction.
func Persist(repo Repository, project, rootPath string, r *Result, hashes map[string]string) error {
	if err := repo.UpsertProject(project, rootPath); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	if err := repo.DeleteEntities(project); err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	if err := repo.DeleteFunctions(project); err != nil {
		return fmt.Errorf("delete functions: %w", err)
	}

	c := r.Corpus
	entities := c.Entities()
	rows := make([]*store.Entity, len(entities))
	for i, e := range entities {
		rows[i] = entityRow(project, e)
	}
	ids, err := repo.InsertEntityBatch(rows)
	if err != nil {
		return err
	}

	var members []*store.Member
	var bases []*store.Base
	for _, e := range entities {
		id, ok := ids[e.Key()]
		if !ok {
			return fmt.Errorf("entity %s: no id after insert", e.Key())
		}
		for i := range e.Members {
			members = append(members, memberRow(c, id, i, &e.Members[i]))
		}
		for i := range e.BaseTypes {
			b := &e.BaseTypes[i]
			bases = append(bases, &store.Base{
				EntityID: id,
				Ordinal:  i,
				Type:     typestr.Format(b),
				TargetQN: targetKey(c, b),
				RefClass: b.Class.String(),
			})
		}
	}
	if err := repo.InsertMemberBatch(members); err != nil {
		return err
	}
	if err := repo.InsertBaseBatch(bases); err != nil {
		return err
	}

	fns := c.Functions()
	frows := make([]*store.Function, len(fns))
	for i, f := range fns {
		frows[i] = functionRow(project, f)
	}
	if err := repo.InsertFunctionBatch(frows); err != nil {
		return err
	}
	if err := repo.ReplaceFileHashes(project, hashes); err != nil {
		return fmt.Errorf("file hashes: %w", err)
	}
	return nil
}

func entityRow(project string, e *model.Entity) *store.Entity {
	props := map[string]any{}
	if len(e.Namespace) > 0 {
		props["namespace"] = e.Namespace
	}
	if len(e.TemplateArgs) > 0 {
		props["template_args"] = formatAll(e.TemplateArgs)
	}
	if len(e.Values) > 0 {
		values := make([]map[string]any, len(e.Values))
		for i, v := range e.Values {
			values[i] = map[string]any{"name": v.Name, "value": v.Value}
		}
		props["values"] = values
	}
	if e.Underlying != nil {
		props["underlying"] = typestr.Format(e.Underlying)
	}
	if e.Aliased != nil {
		props["aliased"] = typestr.Format(e.Aliased)
	}
	if e.Signature != nil {
		props["signature"] = typestr.FormatSignature(e.Signature)
	}
	if e.Alignment != nil {
		props["alignment"] = *e.Alignment
	}
	if e.IsBitmask {
		props["bitmask"] = true
	}
	if e.IsConst {
		props["const"] = true
	}
	if e.IsVolatile {
		props["volatile"] = true
	}
	return &store.Entity{
		Project:       project,
		Kind:          e.Kind.String(),
		Name:          e.NameWithTemplates(),
		QualifiedName: e.Key(),
		BaseTypePath:  e.BaseTypePath,
		FilePath:      e.File,
		Line:          e.Line,
		Size:          e.Size,
		Align:         e.Align,
		LaidOut:       e.LaidOut,
		IsStub:        e.IsStub(),
		IsVTable:      e.IsVTable,
		Properties:    props,
	}
}

func memberRow(c *model.Corpus, entityID int64, ordinal int, m *model.Member) *store.Member {
	return &store.Member{
		EntityID:          entityID,
		Ordinal:           ordinal,
		Name:              m.Name,
		Type:              typestr.Format(&m.Type),
		TargetQN:          targetKey(c, &m.Type),
		RefClass:          m.Type.Class.String(),
		Offset:            m.Offset,
		BitOffset:         m.BitOffset,
		BitWidth:          m.BitFieldWidth,
		SourceOffset:      m.SourceOffset,
		OverloadIndex:     m.OverloadIndex,
		IsPadding:         m.IsPadding,
		IsVTablePointer:   m.IsVTablePointer,
		IsFunctionPointer: m.IsFunctionPointer,
		Signature:         typestr.FormatSignature(m.Signature),
	}
}

func functionRow(project string, f *model.Function) *store.Function {
	props := map[string]any{}
	if len(f.LocalTypes) > 0 {
		props["local_types"] = formatAll(f.LocalTypes)
	}
	return &store.Function{
		Project:       project,
		Name:          f.Name,
		QualifiedName: f.QualifiedName(),
		Address:       int64(f.Address),
		Signature:     typestr.FormatSignature(f.Signature),
		FilePath:      f.File,
		Line:          f.Line,
		Properties:    props,
	}
}

// targetKey is the stored identity of the entity d links to, or "".
func targetKey(c *model.Corpus, d *model.TypeDescriptor) string {
	if d.Class != model.RefEntity {
		return ""
	}
	if e := c.Entity(d.Target); e != nil {
		return e.Key()
	}
	return ""
}

func formatAll(ds []model.TypeDescriptor) []string {
	out := make([]string, len(ds))
	for i := range ds {
		out[i] = typestr.Format(&ds[i])
	}
	return out
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Entity is a stored struct, union, enum or typedef.
type Entity struct {
	ID            int64
	Project       string
	Kind          string
	Name          string // base name with template arguments
	QualifiedName string // namespace and template-inclusive name; unique per project
	BaseTypePath  string
	FilePath      string
	Line          int
	Size          int64
	Align         int64
	LaidOut       bool
	IsStub        bool
	IsVTable      bool
	Properties    map[string]any
}

// Member is one stored field, in declaration order.
type Member struct {
	EntityID          int64
	Ordinal           int
	Name              string
	Type              string
	TargetQN          string // qualified name of the linked entity, if any
	RefClass          string
	Offset            *int64
	BitOffset         int
	BitWidth          *int
	SourceOffset      *int64
	OverloadIndex     int
	IsPadding         bool
	IsVTablePointer   bool
	IsFunctionPointer bool
	Signature         string
}

// Base is one stored base type, in inheritance order.
type Base struct {
	EntityID int64
	Ordinal  int
	Type     string
	TargetQN string
	RefClass string
}

const (
	numEntityCols     = 13
	entitiesBatchSize = 999 / numEntityCols
	numMemberCols     = 15
	membersBatchSize  = 999 / numMemberCols
	numBaseCols       = 5
	basesBatchSize    = 999 / numBaseCols
)

const entityCols = `id, project, kind, name, qualified_name, base_type_path, file_path, line,
	size, align, laid_out, is_stub, is_vtable, properties`

// InsertEntityBatch inserts entities and returns qualified name -> row ID.
// All entities must belong to the same project.
func (s *Store) InsertEntityBatch(entities []*Entity) (map[string]int64, error) {
	result := make(map[string]int64, len(entities))
	for i := 0; i < len(entities); i += entitiesBatchSize {
		end := min(i+entitiesBatchSize, len(entities))
		if err := s.insertEntityChunk(entities[i:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) insertEntityChunk(batch []*Entity, idMap map[string]int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO entities (project, kind, name, qualified_name, base_type_path, file_path, line,
		size, align, laid_out, is_stub, is_vtable, properties) VALUES `)

	args := make([]any, 0, len(batch)*numEntityCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, e.Project, e.Kind, e.Name, e.QualifiedName, e.BaseTypePath, e.FilePath, e.Line,
			e.Size, e.Align, boolInt(e.LaidOut), boolInt(e.IsStub), boolInt(e.IsVTable), marshalProps(e.Properties))
	}
	sb.WriteString(` ON CONFLICT(project, qualified_name) DO UPDATE SET
		kind=excluded.kind, name=excluded.name, base_type_path=excluded.base_type_path,
		file_path=excluded.file_path, line=excluded.line, size=excluded.size, align=excluded.align,
		laid_out=excluded.laid_out, is_stub=excluded.is_stub, is_vtable=excluded.is_vtable,
		properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert entity batch: %w", err)
	}

	qns := make([]string, len(batch))
	for i, e := range batch {
		qns[i] = e.QualifiedName
	}
	return s.resolveEntityIDs(batch[0].Project, qns, idMap)
}

// resolveEntityIDs fetches IDs for a set of qualified names in a single project.
func (s *Store) resolveEntityIDs(project string, qns []string, idMap map[string]int64) error {
	// 1 var for project + N vars for QNs; batch to stay under 999
	const maxQNsPerQuery = 998

	for i := 0; i < len(qns); i += maxQNsPerQuery {
		chunk := qns[i:min(i+maxQNsPerQuery, len(qns))]
		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, project)
		for j, qn := range chunk {
			placeholders[j] = "?"
			args = append(args, qn)
		}
		rows, err := s.q.Query(`SELECT qualified_name, id FROM entities WHERE project=? AND qualified_name IN (`+
			strings.Join(placeholders, ",")+`)`, args...)
		if err != nil {
			return fmt.Errorf("resolve entity ids: %w", err)
		}
		for rows.Next() {
			var qn string
			var id int64
			if err := rows.Scan(&qn, &id); err != nil {
				rows.Close()
				return err
			}
			idMap[qn] = id
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

// InsertMemberBatch inserts members; EntityID must be set.
func (s *Store) InsertMemberBatch(members []*Member) error {
	for i := 0; i < len(members); i += membersBatchSize {
		batch := members[i:min(i+membersBatchSize, len(members))]
		var sb strings.Builder
		sb.WriteString(`INSERT OR REPLACE INTO members (entity_id, ordinal, name, type, target_qn, ref_class,
			byte_offset, bit_offset, bit_width, source_offset, overload_index, is_padding, is_vtable_ptr,
			is_function_ptr, signature) VALUES `)
		args := make([]any, 0, len(batch)*numMemberCols)
		for j, m := range batch {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
			args = append(args, m.EntityID, m.Ordinal, m.Name, m.Type, m.TargetQN, m.RefClass,
				m.Offset, m.BitOffset, m.BitWidth, m.SourceOffset, m.OverloadIndex,
				boolInt(m.IsPadding), boolInt(m.IsVTablePointer), boolInt(m.IsFunctionPointer), m.Signature)
		}
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("insert member batch: %w", err)
		}
	}
	return nil
}

// InsertBaseBatch inserts base type rows; EntityID must be set.
func (s *Store) InsertBaseBatch(bases []*Base) error {
	for i := 0; i < len(bases); i += basesBatchSize {
		batch := bases[i:min(i+basesBatchSize, len(bases))]
		var sb strings.Builder
		sb.WriteString(`INSERT OR REPLACE INTO entity_bases (entity_id, ordinal, type, target_qn, ref_class) VALUES `)
		args := make([]any, 0, len(batch)*numBaseCols)
		for j, b := range batch {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?)")
			args = append(args, b.EntityID, b.Ordinal, b.Type, b.TargetQN, b.RefClass)
		}
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("insert base batch: %w", err)
		}
	}
	return nil
}

// DeleteEntities removes every entity of a project with its members and bases.
func (s *Store) DeleteEntities(project string) error {
	_, err := s.q.Exec("DELETE FROM entities WHERE project=?", project)
	return err
}

// FindEntity returns the entity with the given qualified name, or nil.
func (s *Store) FindEntity(project, qualifiedName string) (*Entity, error) {
	row := s.q.QueryRow(`SELECT `+entityCols+` FROM entities WHERE project=? AND qualified_name=?`,
		project, qualifiedName)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// FindEntitiesByName returns entities whose base name (with template
// arguments) equals name.
func (s *Store) FindEntitiesByName(project, name string) ([]*Entity, error) {
	rows, err := s.q.Query(`SELECT `+entityCols+` FROM entities WHERE project=? AND name=? ORDER BY qualified_name`,
		project, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// EntitiesInGroup returns the entities sharing a BaseTypePath: a root type,
// its nested types and their vtables.
func (s *Store) EntitiesInGroup(project, baseTypePath string) ([]*Entity, error) {
	rows, err := s.q.Query(`SELECT `+entityCols+` FROM entities WHERE project=? AND base_type_path=? ORDER BY qualified_name`,
		project, baseTypePath)
	if err != nil {
		return nil, fmt.Errorf("entities in group: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// EntityMembers returns the members of an entity in declaration order.
func (s *Store) EntityMembers(entityID int64) ([]*Member, error) {
	rows, err := s.q.Query(`SELECT entity_id, ordinal, name, type, target_qn, ref_class, byte_offset, bit_offset,
		bit_width, source_offset, overload_index, is_padding, is_vtable_ptr, is_function_ptr, signature
		FROM members WHERE entity_id=? ORDER BY ordinal`, entityID)
	if err != nil {
		return nil, fmt.Errorf("entity members: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		var m Member
		var offset, source sql.NullInt64
		var width sql.NullInt32
		var padding, vptr, fptr int
		if err := rows.Scan(&m.EntityID, &m.Ordinal, &m.Name, &m.Type, &m.TargetQN, &m.RefClass, &offset,
			&m.BitOffset, &width, &source, &m.OverloadIndex, &padding, &vptr, &fptr, &m.Signature); err != nil {
			return nil, err
		}
		if offset.Valid {
			m.Offset = &offset.Int64
		}
		if source.Valid {
			m.SourceOffset = &source.Int64
		}
		if width.Valid {
			w := int(width.Int32)
			m.BitWidth = &w
		}
		m.IsPadding, m.IsVTablePointer, m.IsFunctionPointer = padding != 0, vptr != 0, fptr != 0
		out = append(out, &m)
	}
	return out, rows.Err()
}

// EntityBases returns the base types of an entity in inheritance order.
func (s *Store) EntityBases(entityID int64) ([]*Base, error) {
	rows, err := s.q.Query(`SELECT entity_id, ordinal, type, target_qn, ref_class
		FROM entity_bases WHERE entity_id=? ORDER BY ordinal`, entityID)
	if err != nil {
		return nil, fmt.Errorf("entity bases: %w", err)
	}
	defer rows.Close()
	var out []*Base
	for rows.Next() {
		var b Base
		if err := rows.Scan(&b.EntityID, &b.Ordinal, &b.Type, &b.TargetQN, &b.RefClass); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// MemberReferrers returns the qualified names of entities with a member
// linked to targetQN.
func (s *Store) MemberReferrers(project, targetQN string) ([]string, error) {
	rows, err := s.q.Query(`SELECT DISTINCT e.qualified_name FROM members m
		JOIN entities e ON e.id = m.entity_id
		WHERE e.project=? AND m.target_qn=? ORDER BY e.qualified_name`, project, targetQN)
	if err != nil {
		return nil, fmt.Errorf("member referrers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var qn string
		if err := rows.Scan(&qn); err != nil {
			return nil, err
		}
		out = append(out, qn)
	}
	return out, rows.Err()
}

// CountEntities returns the number of entities in a project.
func (s *Store) CountEntities(project string) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM entities WHERE project=?", project).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*Entity, error) {
	var e Entity
	var laidOut, stub, vtable int
	var props string
	if err := row.Scan(&e.ID, &e.Project, &e.Kind, &e.Name, &e.QualifiedName, &e.BaseTypePath, &e.FilePath,
		&e.Line, &e.Size, &e.Align, &laidOut, &stub, &vtable, &props); err != nil {
		return nil, err
	}
	e.LaidOut, e.IsStub, e.IsVTable = laidOut != 0, stub != 0, vtable != 0
	e.Properties = unmarshalProps(props)
	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]*Entity, error) {
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

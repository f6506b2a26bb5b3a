package store

import (
	"fmt"
	"strings"
)

// Function is a stored decompiled function.
type Function struct {
	ID            int64
	Project       string
	Name          string
	QualifiedName string
	Address       int64
	Signature     string
	FilePath      string
	Line          int
	Properties    map[string]any
}

const (
	numFunctionCols    = 8
	functionsBatchSize = 999 / numFunctionCols
)

// InsertFunctionBatch inserts functions.
func (s *Store) InsertFunctionBatch(fns []*Function) error {
	for i := 0; i < len(fns); i += functionsBatchSize {
		batch := fns[i:min(i+functionsBatchSize, len(fns))]
		var sb strings.Builder
		sb.WriteString(`INSERT INTO functions (project, name, qualified_name, address, signature, file_path, line, properties) VALUES `)
		args := make([]any, 0, len(batch)*numFunctionCols)
		for j, f := range batch {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?,?,?,?)")
			args = append(args, f.Project, f.Name, f.QualifiedName, f.Address, f.Signature, f.FilePath, f.Line, marshalProps(f.Properties))
		}
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("insert function batch: %w", err)
		}
	}
	return nil
}

// DeleteFunctions removes every function of a project.
func (s *Store) DeleteFunctions(project string) error {
	_, err := s.q.Exec("DELETE FROM functions WHERE project=?", project)
	return err
}

// FindFunctions returns functions whose qualified name matches a glob
// pattern ("Archive::*"), ordered by address. An empty pattern matches all.
func (s *Store) FindFunctions(project, pattern string, limit int) ([]*Function, error) {
	if limit <= 0 {
		limit = 1000
	}
	if pattern == "" {
		pattern = "*"
	}
	rows, err := s.q.Query(`SELECT id, project, name, qualified_name, address, signature, file_path, line, properties
		FROM functions WHERE project=? AND qualified_name LIKE ? ESCAPE '\'
		ORDER BY address, qualified_name LIMIT ?`, project, globToLike(pattern), limit)
	if err != nil {
		return nil, fmt.Errorf("find functions: %w", err)
	}
	defer rows.Close()

	var out []*Function
	for rows.Next() {
		var f Function
		var props string
		if err := rows.Scan(&f.ID, &f.Project, &f.Name, &f.QualifiedName, &f.Address, &f.Signature,
			&f.FilePath, &f.Line, &props); err != nil {
			return nil, err
		}
		f.Properties = unmarshalProps(props)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// CountFunctions returns the number of functions in a project.
func (s *Store) CountFunctions(project string) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM functions WHERE project=?", project).Scan(&n)
	return n, err
}

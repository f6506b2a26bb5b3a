package store

import (
	"fmt"
	"regexp"
	"strings"
)

// SearchParams filters entity searches.
type SearchParams struct {
	Project     string
	Kind        string // "struct", "union", "enum", "typedef"; empty for all
	NamePattern string // regex matched against name and qualified name
	FilePattern string // glob matched against the source file path
	VTables     *bool  // nil: both; true: only vtables; false: no vtables
	StubsOnly   bool   // only entities that were never fully declared
	Limit       int
	Offset      int
}

// SearchOutput wraps search results with total count for pagination.
type SearchOutput struct {
	Results []*Entity
	Total   int
}

// SearchEntities executes a parameterized search query with pagination support.
func (s *Store) SearchEntities(params SearchParams) (*SearchOutput, error) {
	// Limit=0 means use default; use a high ceiling for SQL
	if params.Limit <= 0 {
		params.Limit = 100000
	}

	var conditions []string
	var args []any

	conditions = append(conditions, "project = ?")
	args = append(args, params.Project)

	if params.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, params.Kind)
	}
	if params.FilePattern != "" {
		conditions = append(conditions, `file_path LIKE ? ESCAPE '\'`)
		args = append(args, globToLike(params.FilePattern))
	}
	if params.VTables != nil {
		conditions = append(conditions, "is_vtable = ?")
		args = append(args, boolInt(*params.VTables))
	}
	if params.StubsOnly {
		conditions = append(conditions, "is_stub = 1")
	}

	where := strings.Join(conditions, " AND ")

	// When Go-side filtering is needed (regex), fetch more rows from SQL
	// and apply the user limit after filtering.
	var sqlLimit int
	if params.NamePattern != "" {
		sqlLimit = 100000
	} else {
		sqlLimit = min(params.Offset+params.Limit, 100000)
	}

	query := fmt.Sprintf(`SELECT %s FROM entities WHERE %s ORDER BY qualified_name LIMIT ?`, entityCols, where)
	args = append(args, sqlLimit)

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}

	// Apply name pattern filter in Go (regex)
	if params.NamePattern != "" {
		entities, err = filterByNamePattern(entities, params.NamePattern)
		if err != nil {
			return nil, err
		}
	}

	total := len(entities)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)

	return &SearchOutput{
		Results: entities[start:end],
		Total:   total,
	}, nil
}

// globToLike converts a glob pattern to SQL LIKE pattern. Literal '%' and
// '_' are escaped with '\'.
func globToLike(pattern string) string {
	result := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(pattern)
	// Replace ** with % and * with %
	result = strings.ReplaceAll(result, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}

// filterByNamePattern filters entities by a regex name pattern.
func filterByNamePattern(entities []*Entity, pattern string) ([]*Entity, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid name pattern: %w", err)
	}
	var filtered []*Entity
	for _, e := range entities {
		if re.MatchString(e.Name) || re.MatchString(e.QualifiedName) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

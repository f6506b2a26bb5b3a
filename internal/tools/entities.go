package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/typerecon/internal/store"
)

type entityView struct {
	Project       string         `json:"project"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name"`
	QualifiedName string         `json:"qualified_name"`
	BaseTypePath  string         `json:"base_type_path"`
	File          string         `json:"file"`
	Line          int            `json:"line"`
	Size          *int64         `json:"size,omitempty"`
	Align         *int64         `json:"align,omitempty"`
	Stub          bool           `json:"stub,omitempty"`
	VTable        bool           `json:"vtable,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
	Bases         []baseView     `json:"bases,omitempty"`
	Members       []memberView   `json:"members,omitempty"`
	ReferencedBy  []string       `json:"referenced_by,omitempty"`
}

type baseView struct {
	Type     string `json:"type"`
	Target   string `json:"target,omitempty"`
	RefClass string `json:"ref_class"`
}

type memberView struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Target       string `json:"target,omitempty"`
	RefClass     string `json:"ref_class"`
	Offset       *int64 `json:"offset,omitempty"`
	BitOffset    int    `json:"bit_offset,omitempty"`
	BitWidth     *int   `json:"bit_width,omitempty"`
	SourceOffset *int64 `json:"source_offset,omitempty"`
	Overload     int    `json:"overload,omitempty"`
	Padding      bool   `json:"padding,omitempty"`
	VTablePtr    bool   `json:"vtable_ptr,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

func summarize(e *store.Entity) entityView {
	v := entityView{
		Project:       e.Project,
		Kind:          e.Kind,
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		BaseTypePath:  e.BaseTypePath,
		File:          e.FilePath,
		Line:          e.Line,
		Stub:          e.IsStub,
		VTable:        e.IsVTable,
	}
	if e.LaidOut {
		v.Size, v.Align = &e.Size, &e.Align
	}
	return v
}

// detail loads members, bases and referrers of e.
func detail(st *store.Store, e *store.Entity) (entityView, error) {
	v := summarize(e)
	v.Properties = e.Properties

	members, err := st.EntityMembers(e.ID)
	if err != nil {
		return v, err
	}
	for _, m := range members {
		v.Members = append(v.Members, memberView{
			Name:         m.Name,
			Type:         m.Type,
			Target:       m.TargetQN,
			RefClass:     m.RefClass,
			Offset:       m.Offset,
			BitOffset:    m.BitOffset,
			BitWidth:     m.BitWidth,
			SourceOffset: m.SourceOffset,
			Overload:     m.OverloadIndex,
			Padding:      m.IsPadding,
			VTablePtr:    m.IsVTablePointer,
			Signature:    m.Signature,
		})
	}
	bases, err := st.EntityBases(e.ID)
	if err != nil {
		return v, err
	}
	for _, b := range bases {
		v.Bases = append(v.Bases, baseView{Type: b.Type, Target: b.TargetQN, RefClass: b.RefClass})
	}
	v.ReferencedBy, err = st.MemberReferrers(e.Project, e.QualifiedName)
	return v, err
}

// findEntity looks qn up in project, or in every project when project is
// empty.
func (s *Server) findEntity(project, qn string) (*store.Store, *store.Entity, error) {
	if project != "" {
		st, err := s.projectStore(project)
		if err != nil {
			return nil, nil, err
		}
		e, err := st.FindEntity(project, qn)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			return nil, nil, fmt.Errorf("entity not found: %s", qn)
		}
		return st, e, nil
	}

	projects, err := s.router.ListProjects()
	if err != nil {
		return nil, nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		st, stErr := s.router.ForProject(p.Name)
		if stErr != nil {
			continue
		}
		e, findErr := st.FindEntity(p.Name, qn)
		if findErr == nil && e != nil {
			return st, e, nil
		}
	}
	return nil, nil, fmt.Errorf("entity not found: %s", qn)
}

func (s *Server) handleGetEntity(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}

	st, e, err := s.findEntity(getStringArg(args, "project"), qn)
	if err != nil {
		return errResult(err.Error()), nil
	}
	v, err := detail(st, e)
	if err != nil {
		return errResult(fmt.Sprintf("load %s: %v", qn, err)), nil
	}
	return jsonResult(v), nil
}

func (s *Server) handleSearchEntities(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	st, err := s.projectStore(project)
	if err != nil {
		return errResult(err.Error()), nil
	}

	limit := min(max(getIntArg(args, "limit", 50), 1), 500)
	out, err := st.SearchEntities(store.SearchParams{
		Project:     project,
		Kind:        getStringArg(args, "kind"),
		NamePattern: getStringArg(args, "name_pattern"),
		FilePattern: getStringArg(args, "file_pattern"),
		VTables:     getBoolArg(args, "vtables"),
		StubsOnly:   ptrTrue(getBoolArg(args, "stubs_only")),
		Limit:       limit,
		Offset:      max(getIntArg(args, "offset", 0), 0),
	})
	if err != nil {
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}

	results := make([]entityView, len(out.Results))
	for i, e := range out.Results {
		results[i] = summarize(e)
	}
	return jsonResult(map[string]any{
		"total":    out.Total,
		"results":  results,
		"has_more": out.Total > len(results)+max(getIntArg(args, "offset", 0), 0),
	}), nil
}

func (s *Server) handleGetTypeGroup(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	path := getStringArg(args, "base_type_path")
	if path == "" {
		return errResult("base_type_path is required"), nil
	}
	st, err := s.projectStore(project)
	if err != nil {
		return errResult(err.Error()), nil
	}

	group, err := st.EntitiesInGroup(project, path)
	if err != nil {
		return errResult(fmt.Sprintf("group: %v", err)), nil
	}
	if len(group) == 0 {
		return errResult(fmt.Sprintf("no entities grouped under %s", path)), nil
	}
	results := make([]entityView, len(group))
	for i, e := range group {
		results[i] = summarize(e)
	}
	return jsonResult(map[string]any{
		"base_type_path": path,
		"entities":       results,
	}), nil
}

func ptrTrue(b *bool) bool { return b != nil && *b }

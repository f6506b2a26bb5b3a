package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.router.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err)), nil
	}

	type projectInfo struct {
		Name      string `json:"name"`
		RootPath  string `json:"root_path"`
		IndexedAt string `json:"indexed_at"`
		Entities  int    `json:"entities"`
		Functions int    `json:"functions"`
	}

	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		info := projectInfo{Name: p.Name, RootPath: p.RootPath}
		if st, stErr := s.router.ForProject(p.Name); stErr == nil {
			if proj, _ := st.GetProject(p.Name); proj != nil {
				info.IndexedAt = proj.IndexedAt
			}
			info.Entities, _ = st.CountEntities(p.Name)
			info.Functions, _ = st.CountFunctions(p.Name)
		}
		result = append(result, info)
	}

	return jsonResult(result), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "project_name")
	if name == "" {
		return errResult("project_name is required"), nil
	}
	if !s.router.HasProject(name) {
		return errResult(fmt.Sprintf("project not found: %s", name)), nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if err := s.router.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"deleted": name,
		"status":  "ok",
	}), nil
}

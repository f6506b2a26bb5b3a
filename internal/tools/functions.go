package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListFunctions(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	st, err := s.projectStore(project)
	if err != nil {
		return errResult(err.Error()), nil
	}

	limit := min(max(getIntArg(args, "limit", 100), 1), 1000)
	fns, err := st.FindFunctions(project, getStringArg(args, "pattern"), limit)
	if err != nil {
		return errResult(fmt.Sprintf("list functions: %v", err)), nil
	}

	type functionInfo struct {
		Address    string `json:"address"`
		Name       string `json:"qualified_name"`
		Signature  string `json:"signature"`
		File       string `json:"file"`
		Line       int    `json:"line"`
		LocalTypes any    `json:"local_types,omitempty"`
	}
	result := make([]functionInfo, 0, len(fns))
	for _, f := range fns {
		result = append(result, functionInfo{
			Address:    fmt.Sprintf("0x%X", f.Address),
			Name:       f.QualifiedName,
			Signature:  f.Signature,
			File:       f.FilePath,
			Line:       f.Line,
			LocalTypes: f.Properties["local_types"],
		})
	}
	return jsonResult(result), nil
}

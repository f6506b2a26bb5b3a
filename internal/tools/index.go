package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/typerecon/internal/pipeline"
	"github.com/DeusData/typerecon/internal/store"
)

// Index runs the pipeline for root into its project store. It has the
// shape of watcher.IndexFunc.
func (s *Server) Index(ctx context.Context, project, root string) error {
	_, err := s.index(ctx, project, root)
	return err
}

func (s *Server) index(ctx context.Context, project, root string) (*pipeline.Summary, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	st, err := s.router.ForProject(project)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(ctx, st, root)
	p.ProjectName = project
	return p.Run()
}

func (s *Server) handleIndexCorpus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	projectName := pipeline.ProjectNameFromPath(absPath)
	sum, err := s.index(ctx, projectName, absPath)
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	indexedAt := store.Now()
	if st, err := s.router.ForProject(projectName); err == nil {
		if proj, _ := st.GetProject(projectName); proj != nil {
			indexedAt = proj.IndexedAt
		}
	}

	return jsonResult(map[string]any{
		"project":    projectName,
		"unchanged":  sum.Noop,
		"files":      sum.Files,
		"duplicates": sum.Duplicates,
		"bytes":      humanize.Bytes(uint64(sum.Bytes)),
		"entities":   sum.Entities,
		"functions":  sum.Functions,
		"conflicts":  sum.Conflicts,
		"warnings":   sum.Warnings,
		"unresolved": sum.Unresolved,
		"mismatches": sum.Mismatches,
		"indexed_at": indexedAt,
	}), nil
}

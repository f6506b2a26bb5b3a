// Package tools exposes the stored type model over MCP.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/typerecon/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	router *store.StoreRouter
	// indexMu serializes index_corpus with watcher-triggered reindexing
	indexMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(r *store.StoreRouter, version string) *Server {
	srv := &Server{
		router: r,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "typerecon",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_corpus",
		Description: "Index a directory of decompiler pseudo-C++ output. Parses every declaration, links type references across files, computes member offsets and stores the model. Unchanged corpora are detected by content hash and skipped.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Absolute path to the corpus directory"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleIndexCorpus)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_entity",
		Description: "Return one struct, union, enum or typedef by qualified name (e.g. 'Archive::SetVersionRow' or 'HashTable<unsigned long,Archive *>') with its size, members, computed offsets, linked member types and the entities that embed or point to it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {
					"type": "string",
					"description": "Namespace-qualified, template-inclusive name"
				},
				"project": {
					"type": "string",
					"description": "Project to look in. If omitted, every project is searched."
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleGetEntity)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_entities",
		Description: "Search stored entities by kind, name regex and source file glob. Supports restricting to vtables or to stubs (types only ever forward-declared).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Project name"},
				"kind": {
					"type": "string",
					"description": "Entity kind filter",
					"enum": ["struct", "union", "enum", "typedef"]
				},
				"name_pattern": {"type": "string", "description": "Regex for the name (e.g. '.*_vtbl', 'Archive::.*')"},
				"file_pattern": {"type": "string", "description": "Glob for the source file (e.g. 'types/*.h')"},
				"vtables": {"type": "boolean", "description": "true: only vtables, false: exclude vtables"},
				"stubs_only": {"type": "boolean", "description": "Only entities without a full declaration"},
				"limit": {"type": "integer", "description": "Max results (default 50, max 500)"},
				"offset": {"type": "integer", "description": "Skip this many results"}
			},
			"required": ["project"]
		}`),
	}, s.handleSearchEntities)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_type_group",
		Description: "List every entity grouped under one base type path: the class itself, its nested types and the vtables of both.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Project name"},
				"base_type_path": {"type": "string", "description": "Outermost owning type, e.g. 'Archive'"}
			},
			"required": ["project", "base_type_path"]
		}`),
	}, s.handleGetTypeGroup)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_functions",
		Description: "List recovered functions ordered by address, with signatures and the types of their local variables.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Project name"},
				"pattern": {"type": "string", "description": "Glob over the qualified name (e.g. 'Archive::*')"},
				"limit": {"type": "integer", "description": "Max results (default 100, max 1000)"}
			},
			"required": ["project"]
		}`),
	}, s.handleListFunctions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all indexed corpora with their root path, indexed_at timestamp and entity/function counts.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete an indexed corpus and all its stored data. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {
					"type": "string",
					"description": "Name of the project to delete"
				}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg returns nil when key is absent.
func getBoolArg(args map[string]any, key string) *bool {
	b, ok := args[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// projectStore opens the store of an existing project.
func (s *Server) projectStore(name string) (*store.Store, error) {
	if name == "" {
		return nil, fmt.Errorf("project is required")
	}
	if !s.router.HasProject(name) {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	return s.router.ForProject(name)
}

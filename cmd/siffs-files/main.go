// siffs-files is a standalone stdio tool server giving the desktop agent
// host read access to the siffsd workspace. It speaks line-delimited
// JSON-RPC (initialize, tools/list, tools/call) and refuses every path
// outside the workspace root, symlinks included.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type toolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

var (
	logger        *log.Logger
	workspaceRoot string
)

func initLogger(paths config.Paths) {
	if err := os.MkdirAll(paths.Logs, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logs directory: %v\n", err)
		logger = log.New(os.Stderr, "[siffs-files] ", log.LstdFlags)
		return
	}

	logFile := filepath.Join(paths.Logs, "siffs-files.log")
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		logger = log.New(os.Stderr, "[siffs-files] ", log.LstdFlags)
		return
	}

	logger = log.New(f, "[siffs-files] ", log.LstdFlags)
	logger.Println("workspace tool server starting")
}

func main() {
	paths, err := config.ResolvePaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving paths: %v\n", err)
		os.Exit(1)
	}
	initLogger(paths)

	root := paths.Workspace
	if cfg, err := config.Load(paths.Config); err == nil && cfg.Workspace.Dir != "" {
		root = cfg.Workspace.Dir
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		logger.Fatalf("cannot create workspace directory %s: %v", root, err)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		logger.Fatalf("cannot resolve workspace directory %s: %v", root, err)
	}
	workspaceRoot = filepath.Clean(resolved)
	logger.Printf("workspace root: %s", workspaceRoot)

	server := &filesServer{}
	server.run()
}

type filesServer struct{}

func (s *filesServer) run() {
	scanner := bufio.NewScanner(os.Stdin)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	logger.Println("listening for requests on stdin")

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.handleRequest(line)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		logger.Printf("error reading stdin: %v", err)
	}
	logger.Println("server shutting down")
}

func (s *filesServer) handleRequest(line string) {
	var req jsonRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.sendError(nil, -32700, "Parse error", err.Error())
		return
	}

	logger.Printf("handling method: %s", req.Method)

	switch req.Method {
	case "initialize":
		s.sendResponse(req.ID, initializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: "siffs-files", Version: "1.0.0"},
		})
	case "tools/list":
		s.handleListTools(req)
	case "tools/call":
		s.handleCallTool(req)
	case "notifications/initialized":
		return
	default:
		s.sendError(req.ID, -32601, "Method not found", fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *filesServer) handleListTools(req jsonRPCRequest) {
	tools := []toolDef{
		{
			Name:        "list_workspace",
			Description: "List the files in the siffsd workspace with their kind and size.",
			InputSchema: inputSchema{
				Type:       "object",
				Properties: map[string]property{},
			},
		},
		{
			Name:        "read_text_file",
			Description: "Read a workspace file as text. Use 'head' or 'tail' to limit to the first or last N lines. Only works inside the workspace.",
			InputSchema: inputSchema{
				Type: "object",
				Properties: map[string]property{
					"path": {Type: "string", Description: "Path relative to the workspace root, or an absolute path inside it"},
					"head": {Type: "number", Description: "Return only the first N lines"},
					"tail": {Type: "number", Description: "Return only the last N lines"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "file_info",
			Description: "Get size, kind, timestamps, and permissions for a workspace file.",
			InputSchema: inputSchema{
				Type: "object",
				Properties: map[string]property{
					"path": {Type: "string"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "search_files",
			Description: "Recursively search the workspace for files whose name matches a glob pattern, e.g. '*.xlsx'.",
			InputSchema: inputSchema{
				Type: "object",
				Properties: map[string]property{
					"pattern": {Type: "string", Description: "Glob pattern matched against file names"},
				},
				Required: []string{"pattern"},
			},
		},
	}

	s.sendResponse(req.ID, map[string]any{"tools": tools})
}

func (s *filesServer) handleCallTool(req jsonRPCRequest) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}

	logger.Printf("calling tool: %s", params.Name)

	switch params.Name {
	case "list_workspace":
		s.listWorkspace(req.ID)
	case "read_text_file":
		s.readTextFile(req.ID, params.Arguments)
	case "file_info":
		s.fileInfo(req.ID, params.Arguments)
	case "search_files":
		s.searchFiles(req.ID, params.Arguments)
	default:
		s.sendError(req.ID, -32602, "Unknown tool", fmt.Sprintf("tool not found: %s", params.Name))
	}
}

// resolvePartialSymlinks resolves symlinks on the longest existing prefix of
// a path and reattaches the remaining components. This blocks symlink-based
// escapes even for paths that do not exist yet.
func resolvePartialSymlinks(absPath string) (string, error) {
	parts := strings.Split(absPath, string(filepath.Separator))

	existing := string(filepath.Separator)
	var remaining []string
	foundBreak := false

	for _, part := range parts {
		if part == "" {
			continue
		}
		if foundBreak {
			remaining = append(remaining, part)
			continue
		}

		candidate := filepath.Join(existing, part)
		if _, err := os.Lstat(candidate); err != nil {
			foundBreak = true
			remaining = append(remaining, part)
		} else {
			existing = candidate
		}
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}

	if len(remaining) > 0 {
		resolved = filepath.Join(append([]string{resolved}, remaining...)...)
	}
	return resolved, nil
}

// validatePath confines a path to the workspace root. Relative paths are
// taken relative to the root.
func validatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspaceRoot, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath, err = resolvePartialSymlinks(absPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
	}

	normalized := filepath.Clean(resolvedPath)
	if normalized != workspaceRoot && !strings.HasPrefix(normalized, workspaceRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied: path is outside the workspace")
	}
	return normalized, nil
}

func (s *filesServer) listWorkspace(id any) {
	var lines []string
	err := filepath.WalkDir(workspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(workspaceRoot, path)
		lines = append(lines, fmt.Sprintf("%-10s %10d  %s", domain.KindForPath(path), info.Size(), rel))
		return nil
	})
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to walk workspace: %v", err))
		return
	}

	if len(lines) == 0 {
		s.sendToolText(id, "The workspace is empty.")
		return
	}
	s.sendToolText(id, strings.Join(lines, "\n"))
}

func (s *filesServer) readTextFile(id any, args map[string]any) {
	pathStr, ok := args["path"].(string)
	if !ok {
		s.sendError(id, -32602, "Invalid arguments", "path parameter is required")
		return
	}

	validPath, err := validatePath(pathStr)
	if err != nil {
		s.sendError(id, -32602, "Access denied", err.Error())
		return
	}

	content, err := os.ReadFile(validPath)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to read file: %v", err))
		return
	}

	text := string(content)
	if head, ok := args["head"].(float64); ok {
		lines := strings.Split(text, "\n")
		if int(head) < len(lines) {
			lines = lines[:int(head)]
		}
		text = strings.Join(lines, "\n")
	} else if tail, ok := args["tail"].(float64); ok {
		lines := strings.Split(text, "\n")
		if int(tail) < len(lines) {
			lines = lines[len(lines)-int(tail):]
		}
		text = strings.Join(lines, "\n")
	}

	s.sendToolText(id, text)
}

func (s *filesServer) fileInfo(id any, args map[string]any) {
	pathStr, ok := args["path"].(string)
	if !ok {
		s.sendError(id, -32602, "Invalid arguments", "path parameter is required")
		return
	}

	validPath, err := validatePath(pathStr)
	if err != nil {
		s.sendError(id, -32602, "Access denied", err.Error())
		return
	}

	info, err := os.Stat(validPath)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to stat file: %v", err))
		return
	}

	lines := []string{
		fmt.Sprintf("name: %s", info.Name()),
		fmt.Sprintf("kind: %s", domain.KindForPath(validPath)),
		fmt.Sprintf("size: %d bytes", info.Size()),
		fmt.Sprintf("modified: %s", info.ModTime().Format(time.RFC3339)),
		fmt.Sprintf("mode: %s", info.Mode().String()),
		fmt.Sprintf("isDirectory: %t", info.IsDir()),
	}
	s.sendToolText(id, strings.Join(lines, "\n"))
}

func (s *filesServer) searchFiles(id any, args map[string]any) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		s.sendError(id, -32602, "Invalid arguments", "pattern parameter is required")
		return
	}

	var matches []string
	filepath.WalkDir(workspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		if matched && !d.IsDir() {
			rel, _ := filepath.Rel(workspaceRoot, path)
			matches = append(matches, rel)
		}
		return nil
	})

	if len(matches) == 0 {
		s.sendToolText(id, "No matching files found.")
		return
	}
	s.sendToolText(id, strings.Join(matches, "\n"))
}

func (s *filesServer) sendToolText(id any, text string) {
	s.sendResponse(id, toolResult{Content: []contentItem{{Type: "text", Text: text}}})
}

func (s *filesServer) sendToolError(id any, text string) {
	s.sendResponse(id, toolResult{
		Content: []contentItem{{Type: "text", Text: text}},
		IsError: true,
	})
}

func (s *filesServer) sendResponse(id any, result any) {
	resp := jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Printf("error marshaling response: %v", err)
		return
	}
	fmt.Println(string(data))
}

func (s *filesServer) sendError(id any, code int, message string, data any) {
	resp := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	}
	jsonData, err := json.Marshal(resp)
	if err != nil {
		logger.Printf("error marshaling error response: %v", err)
		return
	}
	fmt.Println(string(jsonData))
}

// siffs-drive is a standalone stdio tool server the desktop agent host
// spawns to import documents from Google Drive into the siffsd workspace.
// It speaks line-delimited JSON-RPC: initialize, tools/list, tools/call.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
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
	Required   []string            `json:"required"`
}

type property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
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

// officeMimes are the Drive MIME types the copilot can work with, including
// the Google-native kinds that export to Office formats.
var officeMimes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.google-apps.spreadsheet",
	"application/vnd.google-apps.presentation",
	"application/vnd.google-apps.document",
	"text/csv",
}

// exportTargets maps Google-native document kinds to the Office format and
// extension they export as.
var exportTargets = map[string]struct {
	mime string
	ext  string
}{
	"application/vnd.google-apps.spreadsheet": {
		mime: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ext:  ".xlsx",
	},
	"application/vnd.google-apps.presentation": {
		mime: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		ext:  ".pptx",
	},
	"application/vnd.google-apps.document": {
		mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		ext:  ".docx",
	},
}

var logger *log.Logger

func initLogger(paths config.Paths) {
	if err := os.MkdirAll(paths.Logs, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logs directory: %v\n", err)
		logger = log.New(os.Stderr, "[siffs-drive] ", log.LstdFlags)
		return
	}

	logFile := filepath.Join(paths.Logs, "siffs-drive.log")
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		logger = log.New(os.Stderr, "[siffs-drive] ", log.LstdFlags)
		return
	}

	logger = log.New(f, "[siffs-drive] ", log.LstdFlags)
	logger.Println("Drive tool server starting")
}

func main() {
	paths, err := config.ResolvePaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving paths: %v\n", err)
		os.Exit(1)
	}
	initLogger(paths)

	for _, arg := range os.Args[1:] {
		if arg == "--auth" {
			runAuth(paths)
			return
		}
	}

	server := &driveServer{paths: paths}
	server.run()
}

// credentialFiles returns the OAuth client credentials and cached token
// paths, preferring the drive section of the config file.
func credentialFiles(paths config.Paths) (string, string) {
	cfg, err := config.Load(paths.Config)
	credentials := ""
	token := ""
	if err == nil {
		credentials = cfg.Drive.CredentialsFile
		token = cfg.Drive.TokenFile
	}
	if credentials == "" {
		credentials = filepath.Join(paths.Credentials, "gdrive-credentials.json")
	}
	if token == "" {
		token = filepath.Join(paths.Credentials, "gdrive-token.json")
	}
	return credentials, token
}

func runAuth(paths config.Paths) {
	credentialsPath, tokenPath := credentialFiles(paths)

	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to read credentials file at %s: %v\n", credentialsPath, err)
		os.Exit(1)
	}

	oauthCfg, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to parse credentials: %v\n", err)
		os.Exit(1)
	}

	if _, err := tokenFromFile(tokenPath); err == nil {
		fmt.Println("Already authenticated. Token exists at", tokenPath)
		fmt.Println("To re-authenticate, delete the token first:")
		fmt.Println("  rm", tokenPath)
		return
	}

	token, err := getTokenFromWeb(oauthCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authentication failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveToken(tokenPath, token); err != nil {
		fmt.Fprintf(os.Stderr, "saving token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nAuthentication successful. Token saved to", tokenPath)
}

func getTokenFromWeb(cfg *oauth2.Config) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(context.Background(), authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

type driveServer struct {
	paths config.Paths
	drive *drive.Service
	ws    *workspace.Manager
}

func (s *driveServer) run() {
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

func (s *driveServer) handleRequest(line string) {
	var req jsonRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.sendError(nil, -32700, "Parse error", err.Error())
		return
	}

	logger.Printf("handling method: %s", req.Method)

	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
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

func (s *driveServer) handleInitialize(req jsonRPCRequest) {
	if err := s.initDriveService(); err != nil {
		logger.Printf("drive init failed: %v", err)
		s.sendError(req.ID, -32603, "Internal error", fmt.Sprintf("failed to initialize Drive service: %v", err))
		return
	}

	s.sendResponse(req.ID, initializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      serverInfo{Name: "siffs-drive", Version: "1.0.0"},
	})
}

func (s *driveServer) initDriveService() error {
	ctx := context.Background()

	credentialsPath, tokenPath := credentialFiles(s.paths)

	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return fmt.Errorf("unable to read credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return fmt.Errorf("unable to parse credentials: %w", err)
	}

	token, err := tokenFromFile(tokenPath)
	if err != nil {
		return fmt.Errorf("no auth token at %s, run 'siffs-drive --auth' first", tokenPath)
	}

	client := oauthCfg.Client(ctx, token)
	s.drive, err = drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("unable to create Drive service: %w", err)
	}

	cfg, err := config.Load(s.paths.Config)
	if err != nil {
		cfg = config.Defaults()
	}
	s.ws, err = workspace.NewManager(s.paths.Workspace, s.paths.Mappings, cfg.Workspace, nil, logging.New(io.Discard, "silent"))
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}

	return nil
}

func (s *driveServer) handleListTools(req jsonRPCRequest) {
	tools := []toolDef{
		{
			Name:        "drive_search",
			Description: "Search Google Drive for documents. Restricted to Office and Google-native document types unless a mime_type is given.",
			InputSchema: inputSchema{
				Type: "object",
				Properties: map[string]property{
					"query": {
						Type:        "string",
						Description: "Name substring to match (optional). Matches all documents when empty.",
					},
					"mime_type": {
						Type:        "string",
						Description: "Restrict to one MIME type (optional).",
					},
					"max_results": {
						Type:        "string",
						Description: "Maximum number of results (default: 20, max: 100)",
						Default:     "20",
					},
				},
				Required: []string{},
			},
		},
		{
			Name:        "drive_download",
			Description: "Download a Drive file into the siffsd workspace and track it. Google-native documents are exported to their Office format.",
			InputSchema: inputSchema{
				Type: "object",
				Properties: map[string]property{
					"file_id": {
						Type:        "string",
						Description: "The ID of the file to download",
					},
					"name": {
						Type:        "string",
						Description: "Local file name (optional, defaults to the Drive name)",
					},
				},
				Required: []string{"file_id"},
			},
		},
	}

	s.sendResponse(req.ID, map[string]any{"tools": tools})
}

func (s *driveServer) handleCallTool(req jsonRPCRequest) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}

	logger.Printf("calling tool: %s", params.Name)

	if s.drive == nil {
		s.sendError(req.ID, -32603, "Internal error", "Drive service not initialized")
		return
	}

	switch params.Name {
	case "drive_search":
		s.searchFiles(req.ID, params.Arguments)
	case "drive_download":
		s.downloadFile(req.ID, params.Arguments)
	default:
		s.sendError(req.ID, -32602, "Unknown tool", fmt.Sprintf("tool not found: %s", params.Name))
	}
}

func (s *driveServer) searchFiles(id any, args map[string]any) {
	query, _ := args["query"].(string)
	mimeType, _ := args["mime_type"].(string)

	maxResults := int64(20)
	if maxStr, ok := args["max_results"].(string); ok && maxStr != "" {
		fmt.Sscanf(maxStr, "%d", &maxResults)
		if maxResults > 100 {
			maxResults = 100
		}
	}

	var parts []string
	if query != "" {
		parts = append(parts, fmt.Sprintf("name contains '%s'", strings.ReplaceAll(query, "'", `\'`)))
	}
	if mimeType != "" {
		parts = append(parts, fmt.Sprintf("mimeType = '%s'", mimeType))
	} else {
		mimes := make([]string, len(officeMimes))
		for i, m := range officeMimes {
			mimes[i] = fmt.Sprintf("mimeType = '%s'", m)
		}
		parts = append(parts, "("+strings.Join(mimes, " or ")+")")
	}
	parts = append(parts, "trashed = false")

	call := s.drive.Files.List().
		PageSize(maxResults).
		Q(strings.Join(parts, " and ")).
		Fields("files(id, name, mimeType, size, modifiedTime, webViewLink)")

	r, err := call.Do()
	if err != nil {
		logger.Printf("search failed: %v", err)
		s.sendToolError(id, fmt.Sprintf("Drive search failed: %v", err))
		return
	}

	if len(r.Files) == 0 {
		s.sendToolText(id, "No matching documents found.")
		return
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Found %d document(s):\n\n", len(r.Files))
	for i, file := range r.Files {
		fmt.Fprintf(&out, "%d. %s\n", i+1, file.Name)
		fmt.Fprintf(&out, "   ID: %s\n", file.Id)
		fmt.Fprintf(&out, "   Type: %s\n", file.MimeType)
		if file.Size > 0 {
			fmt.Fprintf(&out, "   Size: %d bytes\n", file.Size)
		}
		fmt.Fprintf(&out, "   Modified: %s\n\n", file.ModifiedTime)
	}

	s.sendToolText(id, out.String())
}

func (s *driveServer) downloadFile(id any, args map[string]any) {
	fileID, ok := args["file_id"].(string)
	if !ok || fileID == "" {
		s.sendError(id, -32602, "Invalid arguments", "file_id is required")
		return
	}

	file, err := s.drive.Files.Get(fileID).Fields("name, mimeType, size").Do()
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to get file metadata: %v", err))
		return
	}

	name, _ := args["name"].(string)
	if name == "" {
		name = file.Name
	}

	var body io.ReadCloser
	if target, ok := exportTargets[file.MimeType]; ok {
		// Google-native documents have no binary content; export instead.
		if filepath.Ext(name) == "" {
			name += target.ext
		}
		resp, err := s.drive.Files.Export(fileID, target.mime).Download()
		if err != nil {
			s.sendToolError(id, fmt.Sprintf("Failed to export file: %v", err))
			return
		}
		body = resp.Body
	} else {
		resp, err := s.drive.Files.Get(fileID).Download()
		if err != nil {
			s.sendToolError(id, fmt.Sprintf("Failed to download file: %v", err))
			return
		}
		body = resp.Body
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to read file content: %v", err))
		return
	}

	// Land the download next to the workspace, then track it so the mapping
	// manifest picks it up like any other file.
	downloadDir := filepath.Join(s.paths.Base, "downloads")
	if err := os.MkdirAll(downloadDir, 0o700); err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to create download directory: %v", err))
		return
	}
	localPath := filepath.Join(downloadDir, filepath.Base(name))
	if err := os.WriteFile(localPath, content, 0o600); err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to write file: %v", err))
		return
	}

	mapping, err := s.ws.Track(context.Background(), localPath)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Downloaded to %s but tracking failed: %v", localPath, err))
		return
	}

	logger.Printf("downloaded %s (%d bytes) into workspace as %s", name, len(content), mapping.TempPath)
	s.sendToolText(id, fmt.Sprintf("Downloaded '%s' (%d bytes).\nOriginal: %s\nWorkspace copy: %s",
		name, len(content), localPath, mapping.TempPath))
}

func (s *driveServer) sendToolText(id any, text string) {
	s.sendResponse(id, toolResult{Content: []contentItem{{Type: "text", Text: text}}})
}

func (s *driveServer) sendToolError(id any, text string) {
	s.sendResponse(id, toolResult{
		Content: []contentItem{{Type: "text", Text: text}},
		IsError: true,
	})
}

func (s *driveServer) sendResponse(id any, result any) {
	resp := jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Printf("error marshaling response: %v", err)
		return
	}
	fmt.Println(string(data))
}

func (s *driveServer) sendError(id any, code int, message string, data any) {
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

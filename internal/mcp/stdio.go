package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Anabaai/code-search/internal/app"
	"github.com/Anabaai/code-search/pkg/version"
)

const toolName = "search"

// rpcRequest is a JSON-RPC 2.0 request or notification.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// searchArgs is the input schema of the search tool.
type searchArgs struct {
	Query          string `json:"query"`
	RepositoryPath string `json:"repository_path"`
}

// toolCallParams is the params shape of a "tools/call" request.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// textContent is one block of a tool call's result content array.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolCallResult is the result shape of a successful "tools/call".
type toolCallResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Server is a hand-rolled JSON-RPC-over-stdio server exposing the
// "search" tool, the protocol surface a tool-using AI client expects.
// It serializes all paths that touch a project's stores behind a single
// mutex shared by every project the server has opened — the "searcher
// lock" — so an in-flight reindex and an in-flight search never race.
type Server struct {
	defaultLimit int

	mu       sync.Mutex
	projects map[string]*app.App
}

// NewServer constructs a Server. defaultLimit is used when a search
// request carries no limit override (the tool schema exposes none —
// limit is fixed by CODE_SEARCH_LIMIT/config/built-in default).
func NewServer(defaultLimit int) *Server {
	return &Server{defaultLimit: defaultLimit, projects: make(map[string]*app.App)}
}

// Close releases every project store the server opened.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, a := range s.projects {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.projects = make(map[string]*app.App)
	return firstErr
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted or ctx is canceled. Notifications
// (requests with no ID) are handled but never produce a response line.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Error("mcp: malformed request", slog.String("error", err.Error()))
			continue
		}

		resp := s.handle(ctx, &req)
		if resp == nil {
			continue // notification, no response expected
		}
		if err := writeResponse(w, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

func writeResponse(w io.Writer, resp *rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (s *Server) handle(ctx context.Context, req *rpcRequest) *rpcResponse {
	if len(req.ID) == 0 {
		// Notification (e.g. "notifications/initialized"); no response.
		return nil
	}

	switch req.Method {
	case "initialize":
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: initializeResult()}
	case "tools/list":
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: toolsListResult()}
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: methodNotFoundError(req.Method)}
	}
}

func initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "code-search",
			"version": version.Version,
		},
	}
}

func toolsListResult() map[string]any {
	return map[string]any{
		"tools": []map[string]any{
			{
				"name":        toolName,
				"description": "Perform a hybrid (semantic + keyword) code search. Returns relevant code chunks with file path, line numbers, and similarity score.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query":           map[string]any{"type": "string"},
						"repository_path": map[string]any{"type": "string"},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

func (s *Server) handleToolCall(ctx context.Context, req *rpcRequest) *rpcResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: invalidParamsError("invalid arguments: " + err.Error())}
	}

	if params.Name != toolName {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: methodNotFoundError(params.Name)}
	}

	var args searchArgs
	if len(params.Arguments) == 0 {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: invalidParamsError("missing arguments")}
	}
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: invalidParamsError("invalid arguments: " + err.Error())}
	}
	if args.Query == "" {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: invalidParamsError("missing required argument: query")}
	}
	if args.RepositoryPath == "" {
		args.RepositoryPath = "."
	}

	text, rpcErr := s.search(ctx, args)
	if rpcErr != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: toolCallResult{
		Content: []textContent{{Type: "text", Text: text}},
	}}
}

// search resolves the project at args.RepositoryPath (opening and, on
// first use, indexing it), runs the hybrid search, and formats the
// result text block. The whole operation holds the server's single
// "searcher lock" so no reindex and search ever race.
func (s *Server) search(ctx context.Context, args searchArgs) (string, *rpcError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.projectForLocked(ctx, args.RepositoryPath)
	if err != nil {
		return "", serverError(fmt.Sprintf("failed to initialize searcher: %s", err.Error()))
	}

	results, err := a.Ranker.Search(ctx, args.Query, s.defaultLimit)
	if err != nil {
		return "", serverError(fmt.Sprintf("search failed: %s", err.Error()))
	}

	return formatResults(results), nil
}

// projectForLocked returns the cached App for path, opening and indexing
// it on first reference. Callers must hold s.mu.
func (s *Server) projectForLocked(ctx context.Context, path string) (*app.App, error) {
	if a, ok := s.projects[path]; ok {
		return a, nil
	}

	a, err := app.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	if _, err := a.Reindex(ctx, nil, 0); err != nil {
		_ = a.Close()
		return nil, err
	}

	s.projects[path] = a
	return a, nil
}

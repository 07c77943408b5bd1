// Package mcp serves the Chromium history tools over the Model Context
// Protocol, so an editor's assistant can query the checkout directly.
//
// Messages are newline-delimited JSON-RPC 2.0 on a reader/writer pair,
// normally stdin and stdout.
//
// Information Hiding:
// - JSON-RPC framing and error codes hidden
// - Request/notification distinction hidden
// - Tool result to MCP content mapping hidden

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/tools"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// maxMessageBytes bounds a single request line.
const maxMessageBytes = 16 << 20

// Message is a JSON-RPC request, notification or response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// IsNotification reports whether m expects no response.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// ToolInfo describes one tool in a tools/list result.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Content is one block of a tools/call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result of tools/call.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Server answers MCP requests with the tools in a registry.
type Server struct {
	registry *tools.Registry
	executor *tools.Executor
	version  string
}

// NewServer creates a server for registry. version is reported in the
// initialize handshake.
func NewServer(registry *tools.Registry, executor *tools.Executor, version string) *Server {
	if executor == nil {
		executor = tools.NewDefaultExecutor()
	}
	return &Server{registry: registry, executor: executor, version: version}
}

// Serve reads requests from r until EOF or ctx is done, writing responses
// to w. EOF is a clean shutdown.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)
	enc := json.NewEncoder(w)

	logging.Info("mcp server started", "protocol", ProtocolVersion, "tools", len(s.registry.Names()))
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		response := s.handleLine(ctx, line)
		if response == nil {
			continue
		}
		if err := enc.Encode(response); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	logging.Info("mcp server stopped")
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) *Message {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		logging.Warn("unparseable mcp message", "error", err)
		return errorMessage(json.RawMessage("null"), ParseError, "Parse error")
	}
	if msg.JSONRPC != "2.0" {
		return errorMessage(idOrNull(msg.ID), InvalidRequest, "Invalid Request")
	}
	if msg.Method == "" {
		// A response from the client; this server sends no requests.
		return nil
	}
	if msg.IsNotification() {
		logging.Debug("mcp notification", "method", msg.Method)
		return nil
	}

	result, rpcErr := s.handleRequest(ctx, &msg)
	if rpcErr != nil {
		return &Message{JSONRPC: "2.0", ID: msg.ID, Error: rpcErr}
	}
	return &Message{JSONRPC: "2.0", ID: msg.ID, Result: result}
}

func (s *Server) handleRequest(ctx context.Context, msg *Message) (interface{}, *Error) {
	switch msg.Method {
	case "initialize":
		return map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "patchscout",
				"version": s.version,
			},
		}, nil
	case "ping":
		return map[string]interface{}{}, nil
	case "tools/list":
		return map[string]interface{}{"tools": s.listTools()}, nil
	case "tools/call":
		return s.callTool(ctx, msg)
	default:
		return nil, &Error{Code: MethodNotFound, Message: fmt.Sprintf("Method not found: %s", msg.Method)}
	}
}

func (s *Server) listTools() []ToolInfo {
	list := s.registry.List()
	infos := make([]ToolInfo, 0, len(list))
	for _, meta := range list {
		infos = append(infos, ToolInfo{
			Name:        meta.Name,
			Description: meta.Description,
			InputSchema: meta.Schema(),
		})
	}
	return infos
}

func (s *Server) callTool(ctx context.Context, msg *Message) (interface{}, *Error) {
	var params callParams
	if len(msg.Params) == 0 {
		return nil, &Error{Code: InvalidParams, Message: "Missing params"}
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
	}
	tool, ok := s.registry.Get(params.Name)
	if !ok {
		return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("Unknown tool: %s", params.Name)}
	}
	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	result, _, err := s.executor.Execute(ctx, tool, callID(msg.ID), args)
	switch {
	case errors.Is(err, tools.ErrPageExhausted):
		return textResult("No commits after the given commit on this page.", false), nil
	case err != nil:
		return textResult(err.Error(), true), nil
	case !result.Success():
		return textResult(result.Text(), true), nil
	}
	return textResult(result.Text(), false), nil
}

func textResult(text string, isError bool) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}, IsError: isError}
}

func errorMessage(id json.RawMessage, code int, message string) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// callID turns a JSON-RPC id into a tool call identifier.
func callID(id json.RawMessage) string {
	return "mcp_" + strings.Trim(string(id), `"`)
}

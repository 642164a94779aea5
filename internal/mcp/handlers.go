package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/pkg/protocol"
	"github.com/alucardeht/birdwatch-mcp/pkg/version"
)

const instructions = "Read-only access to X (Twitter): search recent tweets, look up users and their " +
	"timelines, and score tweet sentiment. Every tool result is JSON."

// Handle implements jsonrpc2.Handler. It runs on the connection's read loop,
// so a tools/call is registered for cancellation before the next message is
// read. Only the invocation itself leaves the loop.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method == "tools/call" {
		s.handleCallTool(ctx, conn, req)
		return
	}

	result, err := s.handle(req)
	s.reply(ctx, conn, req, result, err)
}

func (s *Server) handle(req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return map[string]interface{}{}, nil
	case "tools/list":
		return s.handleListTools(), nil
	case "notifications/initialized":
		s.initialized.Store(true)
		return nil, nil
	case "notifications/cancelled":
		s.handleCancelled(req)
		return nil, nil
	}

	if req.Notif {
		log.Debug("ignoring notification", "method", req.Method)
		return nil, nil
	}
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method not found: %s", req.Method),
	}
}

func (s *Server) handleInitialize(req *jsonrpc2.Request) (interface{}, error) {
	var params protocol.InitializeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams("initialize", err)
	}

	s.mu.Lock()
	s.clientInfo = params.ClientInfo
	s.mu.Unlock()

	negotiated := negotiateProtocolVersion(params.ProtocolVersion)
	log.Info("client connected",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", negotiated)

	return protocol.InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities: protocol.ServerCapabilities{
			Tools: &protocol.ToolsCapability{ListChanged: false},
		},
		ServerInfo: protocol.Implementation{
			Name:    version.Name,
			Title:   version.Title,
			Version: version.Version,
		},
		Instructions: instructions,
	}, nil
}

func negotiateProtocolVersion(clientVersion string) string {
	for _, v := range version.SupportedProtocolVersions {
		if clientVersion == v {
			return v
		}
	}

	return version.ProtocolVersion
}

func (s *Server) handleListTools() protocol.ListToolsResult {
	descriptors := s.dispatcher.List()
	result := protocol.ListToolsResult{Tools: make([]protocol.Tool, 0, len(descriptors))}

	for _, d := range descriptors {
		schema, err := json.Marshal(d.Schema)
		if err != nil {
			log.Error("failed to render input schema", "capability", d.Name, "error", err)
			schema = json.RawMessage(`{"type":"object"}`)
		}

		result.Tools = append(result.Tools, protocol.Tool{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			InputSchema: schema,
			Annotations: d.Annotations,
		})
	}

	return result
}

func (s *Server) handleCallTool(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params protocol.CallToolParams
	if err := decodeParams(req, &params); err != nil {
		s.reply(ctx, conn, req, nil, invalidParams("tools/call", err))
		return
	}
	if params.Name == "" {
		s.reply(ctx, conn, req, nil, invalidParams("tools/call", fmt.Errorf("tool name is required")))
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	if !req.Notif {
		s.track(req.ID, cancel)
	}

	go func() {
		defer cancel()

		result := s.dispatcher.InvokeJSON(callCtx, params.Name, params.Arguments)
		if !req.Notif {
			s.untrack(req.ID)
		}
		s.reply(ctx, conn, req, toCallResult(result), nil)
	}()
}

func (s *Server) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, result interface{}, err error) {
	if req.Notif {
		if err != nil {
			log.Debug("notification failed", "method", req.Method, "error", err)
		}
		return
	}

	if err != nil {
		var rpcErr *jsonrpc2.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		}
		err = conn.ReplyWithError(ctx, req.ID, rpcErr)
	} else {
		err = conn.Reply(ctx, req.ID, result)
	}

	if err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		log.Warn("failed to send response", "method", req.Method, "id", req.ID.String(), "error", err)
	}
}

func (s *Server) handleCancelled(req *jsonrpc2.Request) {
	var params protocol.CancelledParams
	if err := decodeParams(req, &params); err != nil || len(params.RequestID) == 0 {
		log.Debug("malformed cancel notification", "error", err)
		return
	}

	var id jsonrpc2.ID
	if err := json.Unmarshal(params.RequestID, &id); err != nil {
		log.Debug("malformed cancel request id", "error", err)
		return
	}

	if s.cancel(id) {
		log.Info("call cancelled by client", "request_id", id.String(), "reason", params.Reason)
	}
}

// toCallResult renders an invocation result as MCP tool content. Failures are
// reported in-band with isError so the client sees the error kind.
func toCallResult(result tools.Result) protocol.CallToolResult {
	if result.OK {
		text, err := marshalIndent(result.Payload)
		if err == nil {
			return protocol.CallToolResult{
				Content: []protocol.Content{{Type: "text", Text: text}},
			}
		}
		result = tools.Failure(&tools.ToolError{
			Kind:    tools.KindUpstreamFailure,
			Message: fmt.Sprintf("failed to encode result: %v", err),
			Err:     err,
		})
	}

	text, err := marshalIndent(result.ErrorBody())
	if err != nil {
		text = result.Message()
	}
	return protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: text}},
		IsError: true,
	}
}

func marshalIndent(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func decodeParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return nil
	}
	return json.Unmarshal(*req.Params, v)
}

func invalidParams(method string, err error) *jsonrpc2.Error {
	return &jsonrpc2.Error{
		Code:    jsonrpc2.CodeInvalidParams,
		Message: fmt.Sprintf("invalid %s params: %v", method, err),
	}
}

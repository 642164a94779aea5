package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/pkg/protocol"
	"github.com/alucardeht/birdwatch-mcp/pkg/version"
)

func echoCapability() tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "echo",
			Title:       "Echo",
			Description: "returns its arguments",
			Schema: tools.Schema{Params: []tools.Param{
				{Name: "message", Type: tools.TypeString, Required: true},
				{Name: "repeat", Type: tools.TypeInteger, Default: 1, Range: &tools.Range{Min: 1, Max: 3}},
			}},
			Annotations: tools.LocalAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var req map[string]interface{}
			if err := json.Unmarshal(input, &req); err != nil {
				return nil, err
			}
			return req, nil
		},
	}
}

func blockingCapability(started chan<- struct{}) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{Name: "block", Description: "waits until cancelled"},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

type harness struct {
	client *jsonrpc2.Conn
	server *Server
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, caps ...tools.Capability) *harness {
	t.Helper()

	registry, err := tools.NewRegistry(caps...)
	require.NoError(t, err)
	srv := NewServer(tools.NewDispatcher(registry))

	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverSide) }()

	client := jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.PlainObjectCodec{}),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error) {
			return nil, nil
		}))

	h := &harness{client: client, server: srv, cancel: cancel, done: done}
	t.Cleanup(func() {
		client.Close()
		cancel()
		<-done
	})
	return h
}

func (h *harness) call(t *testing.T, method string, params, result interface{}, opts ...jsonrpc2.CallOption) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.client.Call(ctx, method, params, result, opts...)
}

func (h *harness) callTool(t *testing.T, name string, args interface{}) protocol.CallToolResult {
	t.Helper()
	var result protocol.CallToolResult
	require.NoError(t, h.call(t, "tools/call", map[string]interface{}{"name": name, "arguments": args}, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	return result
}

func TestInitialize(t *testing.T) {
	h := startServer(t, echoCapability())

	tests := []struct {
		requested string
		want      string
	}{
		{"2025-03-26", "2025-03-26"},
		{"2024-11-05", "2024-11-05"},
		{"1999-01-01", version.ProtocolVersion},
		{"", version.ProtocolVersion},
	}

	for _, tt := range tests {
		var result protocol.InitializeResult
		err := h.call(t, "initialize", protocol.InitializeParams{
			ProtocolVersion: tt.requested,
			ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.2.3"},
		}, &result)
		require.NoError(t, err)

		assert.Equal(t, tt.want, result.ProtocolVersion)
		assert.Equal(t, version.Name, result.ServerInfo.Name)
		assert.Equal(t, version.Version, result.ServerInfo.Version)
		require.NotNil(t, result.Capabilities.Tools)
		assert.NotEmpty(t, result.Instructions)
	}

	assert.Equal(t, "test-client", h.server.ClientInfo().Name)
}

func TestInitializedNotification(t *testing.T) {
	h := startServer(t, echoCapability())
	assert.False(t, h.server.Initialized())

	require.NoError(t, h.client.Notify(context.Background(), "notifications/initialized", nil))
	assert.Eventually(t, h.server.Initialized, time.Second, 5*time.Millisecond)
}

func TestPing(t *testing.T) {
	h := startServer(t, echoCapability())

	var result map[string]interface{}
	require.NoError(t, h.call(t, "ping", nil, &result))
	assert.Empty(t, result)
}

func TestUnknownMethod(t *testing.T) {
	h := startServer(t, echoCapability())

	err := h.call(t, "resources/list", nil, nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestToolsList(t *testing.T) {
	h := startServer(t, echoCapability(), blockingCapability(make(chan struct{})))

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Title       string          `json:"title"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
			Annotations map[string]bool `json:"annotations"`
		} `json:"tools"`
	}
	require.NoError(t, h.call(t, "tools/list", nil, &result))
	require.Len(t, result.Tools, 2)

	echo := result.Tools[0]
	assert.Equal(t, "echo", echo.Name)
	assert.Equal(t, "Echo", echo.Title)
	assert.Equal(t, "returns its arguments", echo.Description)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"repeat": {"type": "integer", "default": 1, "minimum": 1, "maximum": 3}
		},
		"required": ["message"]
	}`, string(echo.InputSchema))
	assert.False(t, echo.Annotations["openWorldHint"])
	assert.True(t, echo.Annotations["readOnlyHint"])

	assert.Equal(t, "block", result.Tools[1].Name)
	assert.Nil(t, result.Tools[1].Annotations)
}

func TestToolsCallSuccess(t *testing.T) {
	h := startServer(t, echoCapability())

	result := h.callTool(t, "echo", map[string]interface{}{"message": "héllo <b>", "repeat": 9})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"message": "héllo <b>", "repeat": 3}`, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "<b>")
}

func TestToolsCallFailures(t *testing.T) {
	h := startServer(t, echoCapability())

	tests := []struct {
		name string
		tool string
		args interface{}
		kind tools.ErrorKind
	}{
		{"unknown tool", "nope", map[string]interface{}{}, tools.KindUnknownCapability},
		{"missing argument", "echo", map[string]interface{}{}, tools.KindInvalidArguments},
		{"wrong type", "echo", map[string]interface{}{"message": 1}, tools.KindInvalidArguments},
		{"arguments not an object", "echo", []int{1}, tools.KindInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.callTool(t, tt.tool, tt.args)
			assert.True(t, result.IsError)

			var body struct {
				ErrorKind tools.ErrorKind `json:"errorKind"`
				Message   string          `json:"message"`
			}
			require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &body))
			assert.Equal(t, tt.kind, body.ErrorKind)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestToolsCallMissingName(t *testing.T) {
	h := startServer(t, echoCapability())

	err := h.call(t, "tools/call", map[string]interface{}{"arguments": map[string]interface{}{}}, nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestToolsCallCancelledByClient(t *testing.T) {
	started := make(chan struct{})
	h := startServer(t, blockingCapability(started))

	id := jsonrpc2.ID{Num: 77}
	results := make(chan protocol.CallToolResult, 1)
	go func() {
		var result protocol.CallToolResult
		if err := h.call(t, "tools/call", map[string]interface{}{"name": "block"}, &result, jsonrpc2.PickID(id)); err == nil {
			results <- result
		}
		close(results)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("capability never started")
	}

	require.NoError(t, h.client.Notify(context.Background(), "notifications/cancelled",
		map[string]interface{}{"requestId": 77, "reason": "user aborted"}))

	select {
	case result, ok := <-results:
		require.True(t, ok, "call failed")
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content[0].Text, string(tools.KindCancelled))
	case <-time.After(5 * time.Second):
		t.Fatal("call was not cancelled")
	}
}

func TestToolsCallCancelledImmediately(t *testing.T) {
	h := startServer(t, blockingCapability(make(chan struct{})))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := jsonrpc2.ID{Num: 78}
	waiter, err := h.client.DispatchCall(ctx, "tools/call",
		map[string]interface{}{"name": "block"}, jsonrpc2.PickID(id))
	require.NoError(t, err)
	require.NoError(t, h.client.Notify(ctx, "notifications/cancelled",
		map[string]interface{}{"requestId": 78}))

	var result protocol.CallToolResult
	require.NoError(t, waiter.Wait(ctx, &result), "cancel notification was lost")
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, string(tools.KindCancelled))
}

func TestRequestsAfterToolCallAreNotBlocked(t *testing.T) {
	started := make(chan struct{})
	h := startServer(t, echoCapability(), blockingCapability(started))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	waiter, err := h.client.DispatchCall(ctx, "tools/call",
		map[string]interface{}{"name": "block"}, jsonrpc2.PickID(jsonrpc2.ID{Num: 79}))
	require.NoError(t, err)
	<-started

	result := h.callTool(t, "echo", map[string]interface{}{"message": "still here"})
	assert.False(t, result.IsError)

	var pong map[string]interface{}
	require.NoError(t, h.call(t, "ping", nil, &pong))

	require.NoError(t, h.client.Notify(ctx, "notifications/cancelled",
		map[string]interface{}{"requestId": 79}))
	var blocked protocol.CallToolResult
	require.NoError(t, waiter.Wait(ctx, &blocked))
	assert.True(t, blocked.IsError)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	h := startServer(t, echoCapability())

	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestToCallResultEncodingFailure(t *testing.T) {
	result := toCallResult(tools.Success(make(chan int)))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, string(tools.KindUpstreamFailure))
}

package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

// Server answers JSON-RPC 2.0 requests by routing tools/call into a
// tools.Registry. It is transport-agnostic: transport_stdio.go and
// transport_http.go each decode one request, call Handle, and write the
// encoded response back over their own medium.
type Server struct {
	reg     *tools.Registry
	metrics *Metrics
}

// New builds a Server fronting reg.
func New(reg *tools.Registry) *Server {
	return &Server{reg: reg, metrics: newMetrics()}
}

// Metrics exposes the call counters accumulated so far, for the optional
// --metrics HTTP endpoint.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handle decodes and dispatches one request line, returning the encoded
// response to write back, or nil if raw was a notification (no "id") that
// expects no reply.
func (s *Server) Handle(ctx context.Context, raw []byte) []byte {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeResponse(nil, nil, &rpcError{Code: rpcParseError, Message: err.Error()})
	}
	if req.JSONRPC != "2.0" {
		return encodeResponse(req.ID, nil, &rpcError{Code: rpcInvalidRequest, Message: `jsonrpc must be "2.0"`})
	}

	var result json.RawMessage
	var rerr *rpcError

	switch req.Method {
	case "initialize":
		result = s.handleInitialize()
	case "notifications/initialized":
		return nil
	case "ping":
		result = json.RawMessage(`{}`)
	case "tools/list":
		result, rerr = s.handleToolsList()
	case "tools/call":
		result, rerr = s.handleToolsCall(ctx, req.Params)
	default:
		rerr = &rpcError{Code: rpcMethodNotFound, Message: "unknown method: " + req.Method}
	}

	if len(req.ID) == 0 {
		// Notification: client sent no id, so no response is expected even
		// if the method itself failed.
		if rerr != nil {
			logging.DispatcherWarn("notification %q failed: %s", req.Method, rerr.Message)
		}
		return nil
	}
	return encodeResponse(req.ID, result, rerr)
}

func encodeResponse(id json.RawMessage, result json.RawMessage, rerr *rpcError) []byte {
	resp := response{JSONRPC: "2.0", ID: id, Result: result, Error: rerr}
	data, err := json.Marshal(resp)
	if err != nil {
		logging.DispatcherWarn("failed to marshal mcp response: %v", err)
		return nil
	}
	return data
}

func (s *Server) handleInitialize() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]string{"name": "context-engine-daemon", "version": "1.0.0"},
	})
	return data
}

func (s *Server) handleToolsList() (json.RawMessage, *rpcError) {
	names := s.reg.Names()
	descs := make([]toolDescriptor, 0, len(names))
	for _, name := range names {
		if t := s.reg.Get(name); t != nil {
			descs = append(descs, toolDescriptorFor(t))
		}
	}
	data, err := json.Marshal(map[string]any{"tools": descs})
	if err != nil {
		return nil, &rpcError{Code: rpcInternalError, Message: err.Error()}
	}
	return data, nil
}

func toolDescriptorFor(t *tools.Tool) toolDescriptor {
	props := make(map[string]map[string]any, len(t.Schema.Properties))
	for name, p := range t.Schema.Properties {
		entry := map[string]any{"type": p.Type}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		if p.Default != nil {
			entry["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			entry["enum"] = p.Enum
		}
		if p.Items != nil {
			entry["items"] = map[string]string{"type": p.Items.Type}
		}
		props[name] = entry
	}
	return toolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schemaDocument{Type: "object", Required: t.Schema.Required, Properties: props},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *rpcError) {
	var call toolCallParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, &rpcError{Code: rpcInvalidParams, Message: "invalid tools/call params: " + err.Error()}
		}
	}
	if call.Name == "" {
		return nil, &rpcError{Code: rpcInvalidParams, Message: "missing required field: name"}
	}

	tool := s.reg.Get(call.Name)
	if tool == nil {
		s.metrics.recordCall(call.Name, false)
		data, _ := json.Marshal(toolErrorEnvelope{Error: toolError{
			Code:    string(daemonerr.InvalidInput),
			Message: "unknown tool: " + call.Name,
		}})
		return data, nil
	}

	result, err := s.reg.ExecuteTool(ctx, tool, call.Arguments)
	s.metrics.recordCall(call.Name, err == nil)
	if err != nil {
		data, _ := json.Marshal(toolErrorEnvelope{Error: toolErrorFrom(err)})
		return data, nil
	}

	data, err2 := json.Marshal(toolCallResult{Content: []toolContent{{Type: "text", Text: result.Result}}})
	if err2 != nil {
		return nil, &rpcError{Code: rpcInternalError, Message: err2.Error()}
	}
	return data, nil
}

// toolErrorFrom converts a tool Execute failure into the §6/§7
// { code, message, details? } shape. Component operations fail with
// *daemonerr.Error; a plain error only reaches here from the registry's own
// required-argument check, reported as InvalidInput — the closest taxonomy
// match for a malformed call.
func toolErrorFrom(err error) toolError {
	if derr, ok := err.(*daemonerr.Error); ok {
		return toolError{Code: string(derr.Code), Message: derr.Message, Details: derr.Details}
	}
	return toolError{Code: string(daemonerr.InvalidInput), Message: err.Error()}
}

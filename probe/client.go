package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "spellbook-probe"
	clientVersion   = "dev"
)

// Transport moves JSON-RPC frames between the client and a server.
type Transport interface {
	Send(ctx context.Context, message Message) error
	Receive(ctx context.Context) (Message, error)
	Close(ctx context.Context) error
}

// Client speaks the subset of MCP needed to inspect a single-tool server.
type Client struct {
	transport Transport

	mu     sync.Mutex
	nextID int64
}

// NewClient returns a client over transport.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport, nextID: 1}
}

// Initialize performs the handshake and sends notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	var result InitializeResult
	err := c.call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      Implementation{Name: clientName, Version: clientVersion},
	}, &result)
	if err != nil {
		return InitializeResult{}, err
	}
	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return InitializeResult{}, err
	}
	return result, nil
}

// ListTools returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var result toolsListResult
	if err := c.call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes name with arguments, which must encode a JSON object.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (CallResult, error) {
	var result CallResult
	if err := c.call(ctx, "tools/call", toolsCallParams{Name: name, Arguments: arguments}, &result); err != nil {
		return CallResult{}, err
	}
	return result, nil
}

// Close closes the transport.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.transport == nil {
		return nil
	}
	return c.transport.Close(ctx)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.transport == nil {
		return &RequestError{Method: method, Err: errors.New("transport is nil")}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return &RequestError{Method: method, Err: fmt.Errorf("encode params: %w", err)}
	}

	id := c.requestID()
	if err := c.transport.Send(ctx, Message{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: raw}); err != nil {
		return &RequestError{Method: method, Err: err}
	}

	for {
		response, err := c.transport.Receive(ctx)
		if err != nil {
			return &RequestError{Method: method, Err: err}
		}
		if response.JSONRPC != "" && response.JSONRPC != jsonRPCVersion {
			return &RequestError{Method: method, Err: fmt.Errorf("unsupported jsonrpc version %q", response.JSONRPC)}
		}
		// Server notifications and stale responses are skipped.
		if response.ID != id {
			continue
		}
		if response.Error != nil {
			return &RequestError{Method: method, Err: response.Error}
		}
		if out == nil || len(response.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(response.Result, out); err != nil {
			return &RequestError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
		return nil
	}
}

func (c *Client) notify(ctx context.Context, method string) error {
	return c.transport.Send(ctx, Message{JSONRPC: jsonRPCVersion, Method: method})
}

func (c *Client) requestID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

package mcpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/pkg/mcporter"
)

// acceptRoundTripper enforces the normalized Accept header of spec.md §6.5
// on every outgoing request.
type acceptRoundTripper struct {
	next   http.RoundTripper
	accept string
}

func (rt *acceptRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.accept != "" {
		req.Header.Set("Accept", rt.accept)
	}
	next := rt.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// HTTPClient is the McpClient adapter for the streamable-HTTP transport,
// implemented directly on top of the real MCP SDK (no process lifecycle to
// own, unlike the stdio leg — spec.md §9).
type HTTPClient struct {
	stateBox

	name      string
	client    *mcp.Client
	transport mcp.Transport
	session   *mcp.ClientSession
}

// NewHTTPClient builds an unconnected client for an HTTP-backed server
// definition. The Accept header §6.5 normalizes into cmd.Headers at catalog
// validation time; here it is carried onto every request via a
// RoundTripper so the SDK's own header handling never needs patching.
func NewHTTPClient(name string, cmd *catalog.HTTPCommand) *HTTPClient {
	accept := ""
	for k, v := range cmd.Headers {
		if strings.EqualFold(k, "accept") {
			accept = v
		}
	}

	httpClient := &http.Client{Transport: &acceptRoundTripper{accept: accept}}
	transport := &mcp.StreamableClientTransport{
		Endpoint:   cmd.URL,
		HTTPClient: httpClient,
	}

	impl := &mcp.Implementation{Name: "mcporter", Version: "0.1.0"}
	return &HTTPClient{
		name:      name,
		client:    mcp.NewClient(impl, nil),
		transport: transport,
	}
}

func (c *HTTPClient) State() State { return c.get() }

// Initialize dials the streamable-HTTP transport and completes the MCP
// handshake (initialize + notifications/initialized), all handled by the
// SDK's Client.Connect.
func (c *HTTPClient) Initialize(ctx context.Context) error {
	c.transition(StateStarting)
	session, err := c.client.Connect(ctx, c.transport, nil)
	if err != nil {
		c.transition(StateFailed)
		return mcporter.NewOpError("initialize", c.name, err)
	}
	c.session = session
	c.transition(StateReady)
	return nil
}

func (c *HTTPClient) ListTools(ctx context.Context, includeSchema bool) ([]*mcp.Tool, error) {
	if c.session == nil {
		return nil, mcporter.ErrTransportClosed
	}
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, mcporter.NewOpError("listTools", c.name, err)
	}
	if !includeSchema {
		for _, t := range result.Tools {
			t.InputSchema = nil
		}
	}
	return result.Tools, nil
}

func (c *HTTPClient) ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	if c.session == nil {
		return nil, mcporter.ErrTransportClosed
	}
	result, err := c.session.ListResources(ctx, params)
	if err != nil {
		return nil, mcporter.NewOpError("listResources", c.name, err)
	}
	return result, nil
}

func (c *HTTPClient) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcporter.CallResult, error) {
	if c.session == nil {
		return nil, mcporter.ErrTransportClosed
	}
	var result *mcp.CallToolResult
	err := withTimeout(ctx, timeout, func(ctx context.Context) error {
		r, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return err
		}
		result = r
		return nil
	}, func() {
		// The abandoned goroutine above may still be using the session;
		// drop it rather than leave a half-answered call cached as ready.
		c.transition(StateFailed)
		_ = c.session.Close()
	})
	if err != nil {
		return nil, mcporter.NewOpError("callTool", c.name, err)
	}
	return mcporter.NewCallResult(result), nil
}

func (c *HTTPClient) Close() error {
	c.transition(StateClosing)
	if c.session == nil {
		c.transition(StateClosed)
		return nil
	}
	err := c.session.Close()
	c.transition(StateClosed)
	return err
}

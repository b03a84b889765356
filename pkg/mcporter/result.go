package mcporter

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallResult is an opaque wrapper over a tool call's raw response, offering
// the four projections callers actually need instead of forcing every
// caller to understand the MCP content-block union type.
type CallResult struct {
	raw *mcp.CallToolResult
}

// NewCallResult wraps a raw MCP tool result.
func NewCallResult(raw *mcp.CallToolResult) *CallResult {
	return &CallResult{raw: raw}
}

// IsError reports whether the server flagged this result as a tool-level
// error (distinct from a transport/protocol error).
func (c *CallResult) IsError() bool {
	return c != nil && c.raw != nil && c.raw.IsError
}

// Text concatenates every text content block, or returns nil if there are
// none.
func (c *CallResult) Text() *string {
	if c == nil || c.raw == nil {
		return nil
	}
	var parts []string
	for _, block := range c.raw.Content {
		if t, ok := block.(*mcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, "\n")
	return &joined
}

// Markdown returns the text projection unchanged; it does no fencing and
// does not look at mime types. Returns nil when there is no text.
func (c *CallResult) Markdown() *string {
	text := c.Text()
	if text == nil {
		return nil
	}
	return text
}

// JSON attempts to parse the text projection as JSON, returning the decoded
// value. Returns nil when there is no text or it does not parse as JSON.
func (c *CallResult) JSON() any {
	text := c.Text()
	if text == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*text), &v); err != nil {
		return nil
	}
	return v
}

// Structured returns the server-provided structured content, or nil when
// the server did not populate it.
func (c *CallResult) Structured() any {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.StructuredContent
}

// Raw returns the underlying SDK result for callers that need full access.
func (c *CallResult) Raw() *mcp.CallToolResult {
	if c == nil {
		return nil
	}
	return c.raw
}

// Package mcpserver exposes image generation and retention over the Model
// Context Protocol on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/metrics"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

// Generator produces images from validated parameters.
type Generator interface {
	Generate(ctx context.Context, p params.Parameters) (*imagegen.Result, error)
}

// Deps are the collaborators the tools call into.
type Deps struct {
	// Generator may be nil when no API key is configured; generate_image
	// then reports an error result.
	Generator Generator
	Sweeper   *retention.Sweeper
	OutputDir string
	// Policy is the default for cleanup_images when no overrides are given.
	Policy retention.Policy
}

// Server wraps an mcp.Server with the tool set registered.
type Server struct {
	deps Deps
	mcp  *mcp.Server
}

type toolFunc func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult

// New creates a Server and registers its tools.
func New(name, version string, deps Deps) *Server {
	if deps.Sweeper == nil {
		deps.Sweeper = retention.NewSweeper()
	}
	s := &Server{
		deps: deps,
		mcp:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}

	s.addTool(generateImageTool(), s.generateImage)
	s.addTool(listModelsTool(), s.listModels)
	s.addTool(cleanupImagesTool(), s.cleanupImages)
	s.addTool(imageStatsTool(), s.imageStats)
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("MCP server listening on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) addTool(tool *mcp.Tool, fn toolFunc) {
	s.mcp.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return s.call(ctx, tool.Name, fn, args), nil
	})
}

// call runs fn and records its latency and outcome.
func (s *Server) call(ctx context.Context, name string, fn toolFunc, args json.RawMessage) *mcp.CallToolResult {
	start := time.Now()
	res := fn(ctx, args)
	elapsed := time.Since(start)

	outcome := "ok"
	if res.IsError {
		outcome = "error"
	}
	metrics.New(metrics.Namespace).
		Dimension("Tool", name).
		Dimension("Result", outcome).
		Metric("ToolCallMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ToolCalls").
		Flush()

	log.Debug().Str("tool", name).Str("result", outcome).Dur("duration", elapsed).Msg("Tool call handled")
	return res
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: " + err.Error())
	}
	return textResult(string(data))
}

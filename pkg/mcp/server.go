// Package mcp exposes the harness's run history and reports over the
// Model Context Protocol, so analysis agents can query past simulation
// runs without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/civiclab/ballotsim/pkg/reports"
	"github.com/civiclab/ballotsim/pkg/store"
)

// Server adapts the run-history store and report generators to MCP.
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	outDir    string
}

// NewServer creates a new MCP server instance over the given history
// store and run-log output directory.
func NewServer(st *store.Store, outDir string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"ballotsim",
			"1.0.0",
		),
		store:  st,
		outDir: outDir,
	}
	s.registerResources()
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"ballotsim://runs",
		"Simulation Run History",
		mcp.WithResourceDescription("Recent simulation runs with completion and failure counts"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRuns)

	s.mcpServer.AddResource(mcp.NewResource(
		"ballotsim://stats",
		"Aggregate Run Statistics",
		mcp.WithResourceDescription("Totals across the whole recorded run history"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStats)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"run_report",
		mcp.WithDescription("Generate the report for one simulation run: outcomes, phase timings, donation rate by condition."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The run identifier")),
	), s.handleRunReport)
}

func (s *Server) handleReadRuns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.store.ListRuns(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run history: %w", err)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run history: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadStats(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	totals, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	data, err := json.MarshalIndent(totals, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := mcp.ParseString(request, "run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	gen := reports.NewRunReport(filepath.Join(s.outDir, runID))
	reader, err := gen.Generate(ctx, reports.ReportFormatText)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report failed: %v", err)), nil
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report read failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(text)), nil
}

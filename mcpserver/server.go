// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox executor to the embedding chat
// application through the execute_code tool, using the mark3labs/mcp-go
// library for the protocol details. Request-level faults (empty source,
// missing report backend, workspace storage failures) come back as MCP error
// results; execution faults come back as normal results with success=false so
// the caller can present partial output.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/businessastra/runbox/config"
	"github.com/businessastra/runbox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.CodeExecutor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.CodeExecutor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("server.metrics_port", s.config.Server.MetricsPort),
		zap.String("sandbox.base_dir", s.config.Sandbox.BaseDir),
		zap.String("sandbox.output_dir", s.config.Sandbox.OutputDir),
		zap.String("sandbox.public_prefix", s.config.Sandbox.PublicPrefix),
		zap.String("sandbox.python_bin", s.config.Sandbox.PythonBin),
		zap.String("sandbox.render_bin", s.config.Sandbox.RenderBin),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.render_timeout_sec", s.config.Sandbox.RenderTimeoutSec),
		zap.Int("sandbox.sweep_interval_sec", s.config.Sandbox.SweepIntervalSec),
		zap.Int("sandbox.max_workspace_age_sec", s.config.Sandbox.MaxWorkspaceAgeSec),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("runbox-executor", "A sandboxed code execution server")

	// Register the execute_code tool
	s.registerExecuteCodeTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Execute Python code in an isolated sandbox workspace and collect produced files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source code to execute",
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "Execution recipe",
					"enum":        []string{"generic", "report", "animation"},
				},
				"workspace_id": map[string]any{
					"type":        "string",
					"description": "Existing workspace identifier to reuse (optional)",
				},
				"input_files": map[string]any{
					"type":        "object",
					"description": "Previously uploaded file contents, filename to text (optional)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	mode := sandbox.Mode(request.GetString("mode", string(sandbox.ModeGeneric)))
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid mode: %s, must be one of: generic, report, animation", mode)
	}

	workspaceID := request.GetString("workspace_id", "")

	inputFiles := map[string]string{}
	if raw, ok := request.GetArguments()["input_files"].(map[string]any); ok {
		for name, content := range raw {
			text, isString := content.(string)
			if !isString {
				return nil, fmt.Errorf("input_files entry %q must be a string", name)
			}
			inputFiles[name] = text
		}
	}

	s.logger.Info("executing code in sandbox",
		zap.String("mode", string(mode)),
		zap.String("workspace_id", workspaceID),
		zap.Int("input_files", len(inputFiles)))

	result, err := s.executor.Execute(ctx, sandbox.ExecuteRequest{
		Mode:        mode,
		Code:        code,
		WorkspaceID: workspaceID,
		InputFiles:  inputFiles,
	})
	if err != nil {
		s.logger.Warn("execution request rejected",
			zap.Error(err),
			zap.String("mode", string(mode)))
		return errorResult(err), nil
	}

	s.logger.Info("code execution completed",
		zap.String("mode", string(mode)),
		zap.String("workspace_id", result.WorkspaceID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("output_files", len(result.OutputFiles)))

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
	}, nil
}

// errorResult shapes a request-level fault as an MCP error result.
func errorResult(err error) *mcp.CallToolResult {
	message := "Execution failed: " + err.Error()
	switch {
	case errors.Is(err, sandbox.ErrEmptySource), errors.Is(err, sandbox.ErrInvalidWorkspaceID):
		message = "Invalid input: " + err.Error()
	case errors.Is(err, sandbox.ErrReportBackendUnavailable):
		message = "Dependency unavailable: " + err.Error()
	case errors.Is(err, sandbox.ErrStorage):
		message = "Storage error: " + err.Error()
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: message,
			},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

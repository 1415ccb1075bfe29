// Package mcp registers the workspace tool surface on an MCP server and
// serves it over stdio or streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/slackhub/slackhub/internal/core"
	"github.com/slackhub/slackhub/internal/creds"
	slackclient "github.com/slackhub/slackhub/internal/slack"
	"github.com/slackhub/slackhub/internal/tail"
	"github.com/slackhub/slackhub/internal/telemetry"
)

// Server owns the MCP tool registry and its transport.
type Server struct {
	slack  *slackclient.Client
	audit  *core.AuditService
	tail   tail.Options
	addr   string
	logger *slog.Logger

	mcp     *server.MCPServer
	httpSrv *server.StreamableHTTPServer
}

func NewServer(slack *slackclient.Client, audit *core.AuditService, tailOpts tail.Options, addr, version string, logger *slog.Logger) *Server {
	s := &Server{
		slack:  slack,
		audit:  audit,
		tail:   tailOpts,
		addr:   addr,
		logger: logger,
	}

	m := server.NewMCPServer("slackhub", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools(m)
	s.mcp = m

	// Built here rather than in ListenAndServe: the serving goroutine and
	// the shutdown path both touch this field, so the write must happen
	// before either runs.
	s.httpSrv = server.NewStreamableHTTPServer(m,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return creds.WithRequest(ctx, r)
		}),
	)
	return s
}

// ServeStdio serves the protocol on stdin/stdout and blocks until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// ListenAndServe serves streamable HTTP. Inbound credential headers are
// copied into the request context so each tool call authenticates with the
// caller's own session.
func (s *Server) ListenAndServe() error {
	s.logger.Info("mcp server starting", "transport", "http", "addr", s.addr)
	return s.httpSrv.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// ToolDefinitions lists the served tools with their input schemas. Exported
// for the documentation generator.
func ToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("get_server_logs",
			mcp.WithDescription("Read recent lines from a server log file"),
			mcp.WithString("log_file_path", mcp.Required(), mcp.Description("Path to the log file (e.g. logs/pipeline_bot.log)")),
			mcp.WithNumber("lines", mcp.DefaultNumber(tail.DefaultMaxLines), mcp.Description("Number of trailing lines to read")),
		),
		mcp.NewTool("get_channel_history",
			mcp.WithDescription("Get the message history of a channel"),
			mcp.WithString("channel_id", mcp.Required()),
		),
		mcp.NewTool("post_message",
			mcp.WithDescription("Post a message to a channel, optionally inside a thread"),
			mcp.WithString("channel_id", mcp.Required()),
			mcp.WithString("message", mcp.Required()),
			mcp.WithString("thread_ts", mcp.Description("Parent message timestamp; accepts seconds.microseconds or the 16-digit form from shared links")),
			mcp.WithBoolean("skip_log", mcp.DefaultBool(false)),
		),
		mcp.NewTool("post_command",
			mcp.WithDescription("Run a slash command in a channel"),
			mcp.WithString("channel_id", mcp.Required()),
			mcp.WithString("command", mcp.Required()),
			mcp.WithString("text", mcp.Required()),
			mcp.WithBoolean("skip_log", mcp.DefaultBool(false)),
		),
		mcp.NewTool("add_reaction",
			mcp.WithDescription("Add an emoji reaction to a message"),
			mcp.WithString("channel_id", mcp.Required()),
			mcp.WithString("message_ts", mcp.Required()),
			mcp.WithString("reaction", mcp.Required(), mcp.Description("Emoji name without colons")),
		),
		mcp.NewTool("whoami",
			mcp.WithDescription("Check authentication and identity"),
		),
		mcp.NewTool("join_channel",
			mcp.WithDescription("Join a channel"),
			mcp.WithString("channel_id", mcp.Required()),
			mcp.WithBoolean("skip_log", mcp.DefaultBool(false)),
		),
	}
}

func (s *Server) registerTools(m *server.MCPServer) {
	handlers := map[string]server.ToolHandlerFunc{
		"get_server_logs":     s.handleGetServerLogs,
		"get_channel_history": s.handleGetChannelHistory,
		"post_message":        s.handlePostMessage,
		"post_command":        s.handlePostCommand,
		"add_reaction":        s.handleAddReaction,
		"whoami":              s.handleWhoami,
		"join_channel":        s.handleJoinChannel,
	}
	for _, tool := range ToolDefinitions() {
		m.AddTool(tool, s.instrument(tool.Name, handlers[tool.Name]))
	}
}

// instrument tags each invocation with a trace id and records outcome
// counters and duration.
func (s *Server) instrument(toolName string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = core.WithTraceID(ctx, uuid.New().String())
		start := time.Now()

		res, err := h(ctx, req)

		status := "ok"
		if err != nil || (res != nil && res.IsError) {
			status = "fail"
		}
		telemetry.IncToolCall(toolName, status)
		telemetry.ObserveToolDuration(toolName, time.Since(start))
		s.logger.Info("tool call",
			"tool", toolName,
			"trace_id", core.TraceID(ctx),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}
}

func (s *Server) handleGetServerLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("log_file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := req.GetInt("lines", tail.DefaultMaxLines)

	s.audit.Record(ctx, "get_server_logs", fmt.Sprintf("Reading %d lines from log file: %s", lines, path))

	res, err := tail.Read(path, lines, s.tail)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(res.Render()), nil
}

func (s *Server) handleGetChannelHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.audit.Record(ctx, "get_channel_history", fmt.Sprintf("Getting history of channel <#%s>", channelID))

	msgs, err := s.slack.ChannelHistory(ctx, channelID)
	if err != nil {
		s.logger.Error("channel history failed", "channel", channelID, "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

func (s *Server) handlePostMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadTS := req.GetString("thread_ts", "")

	if !req.GetBool("skip_log", false) {
		s.audit.Record(ctx, "post_message", fmt.Sprintf("Posting message to channel <#%s>: %s", channelID, message))
		// The implicit join below the post gets its own audit line, same as
		// an explicit join.
		s.audit.Record(ctx, "join_channel", fmt.Sprintf("Joining channel <#%s>", channelID))
	}

	if err := s.slack.PostMessage(ctx, channelID, message, threadTS); err != nil {
		s.logger.Error("post message failed", "channel", channelID, "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("true"), nil
}

func (s *Server) handlePostCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !req.GetBool("skip_log", false) {
		s.audit.Record(ctx, "post_command", fmt.Sprintf("Posting command to channel <#%s>: %s %s", channelID, command, text))
		s.audit.Record(ctx, "join_channel", fmt.Sprintf("Joining channel <#%s>", channelID))
	}

	if err := s.slack.PostCommand(ctx, channelID, command, text); err != nil {
		s.logger.Error("post command failed", "channel", channelID, "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("true"), nil
}

func (s *Server) handleAddReaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	messageTS, err := req.RequireString("message_ts")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reaction, err := req.RequireString("reaction")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.audit.Record(ctx, "add_reaction", fmt.Sprintf("Adding reaction to message %s in channel <#%s>: :%s:", messageTS, channelID, reaction))

	if err := s.slack.AddReaction(ctx, channelID, messageTS, reaction); err != nil {
		s.logger.Error("add reaction failed", "channel", channelID, "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("true"), nil
}

func (s *Server) handleWhoami(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.audit.Record(ctx, "whoami", "Checking authentication & identity")

	user, err := s.slack.WhoAmI(ctx)
	if err != nil {
		s.logger.Error("whoami failed", "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(user), nil
}

func (s *Server) handleJoinChannel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !req.GetBool("skip_log", false) {
		s.audit.Record(ctx, "join_channel", fmt.Sprintf("Joining channel <#%s>", channelID))
	}

	if err := s.slack.JoinChannel(ctx, channelID); err != nil {
		s.logger.Error("join channel failed", "channel", channelID, "trace_id", core.TraceID(ctx), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("true"), nil
}

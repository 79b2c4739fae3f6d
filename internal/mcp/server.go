package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/bam-rec/internal/intent"
	"github.com/mfenderov/bam-rec/internal/recommend"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// Recommender answers recommendation requests.
type Recommender interface {
	Validate(req models.RecommendationRequest) error
	GetRecommendations(ctx context.Context, req models.RecommendationRequest) []models.RecommendationResult
	GetPerformanceMetrics() recommend.PerformanceMetrics
}

// ContentReader looks up one saved content row. A missing row is nil, nil.
type ContentReader interface {
	GetContent(ctx context.Context, id string) (*models.RawContent, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	// MaxRecommendations is used when a call does not set one.
	MaxRecommendations int
}

// Server exposes the recommendation service as MCP tools.
type Server struct {
	mcpServer   *server.MCPServer
	recommender Recommender
	resolver    recommend.IntentResolver
	content     ContentReader
	config      Config
}

// NewServer creates a new MCP server with recommendation tools. A nil resolver
// leaves out resolve_intent and a nil content reader leaves out get_content.
func NewServer(config Config, recommender Recommender, resolver recommend.IntentResolver, content ContentReader) (*Server, error) {
	if recommender == nil {
		return nil, fmt.Errorf("recommender is required")
	}
	if config.MaxRecommendations <= 0 {
		config.MaxRecommendations = 10
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer:   mcpServer,
		recommender: recommender,
		resolver:    resolver,
		content:     content,
		config:      config,
	}

	recommendTool := mcp.NewTool("get_recommendations",
		mcp.WithDescription("Rank the user's saved content against what they are working on. Returns scored recommendations with a short reason each."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose saved content is ranked"),
		),
		mcp.WithString("title",
			mcp.Description("What the user is working on (title or description is required)"),
		),
		mcp.WithString("description",
			mcp.Description("Longer description of the task"),
		),
		mcp.WithString("technologies",
			mcp.Description("Comma-separated technologies, e.g. \"react,typescript\""),
		),
		mcp.WithString("project_id",
			mcp.Description("Project the request belongs to"),
		),
		mcp.WithNumber("max_recommendations",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
		mcp.WithString("engine",
			mcp.Description("Ranking engine"),
			mcp.Enum("fast", "context", "auto"),
		),
		mcp.WithNumber("quality_threshold",
			mcp.Description("Minimum content quality, 0-10"),
		),
		mcp.WithNumber("diversity_weight",
			mcp.Description("0-1; higher values push repeated content types down the list"),
		),
		mcp.WithBoolean("include_global",
			mcp.Description("Also rank content other users shared"),
		),
	)
	mcpServer.AddTool(recommendTool, s.recommendHandler)

	metricsTool := mcp.NewTool("get_performance_metrics",
		mcp.WithDescription("Report cache hit rate and per-engine latency and success rate"),
	)
	mcpServer.AddTool(metricsTool, s.metricsHandler)

	if resolver != nil {
		intentTool := mcp.NewTool("resolve_intent",
			mcp.WithDescription("Show how a request is interpreted: goal, learning stage, urgency and technologies"),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Request text to interpret"),
			),
			mcp.WithString("user_id",
				mcp.Description("User the request belongs to"),
			),
			mcp.WithString("project_id",
				mcp.Description("Project whose stored analysis may be reused"),
			),
			mcp.WithString("technologies",
				mcp.Description("Comma-separated technologies"),
			),
		)
		mcpServer.AddTool(intentTool, s.intentHandler)
	}

	if content != nil {
		contentTool := mcp.NewTool("get_content",
			mcp.WithDescription("Get a saved content row by ID, e.g. one returned by get_recommendations"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Content ID to retrieve"),
			),
		)
		mcpServer.AddTool(contentTool, s.getContentHandler)
	}

	return s, nil
}

// recommendHandler handles the get_recommendations tool call.
func (s *Server) recommendHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}

	rr := models.RecommendationRequest{
		UserID:               userID,
		Title:                req.GetString("title", ""),
		Description:          req.GetString("description", ""),
		Technologies:         req.GetString("technologies", ""),
		ProjectID:            req.GetString("project_id", ""),
		MaxRecommendations:   req.GetInt("max_recommendations", s.config.MaxRecommendations),
		EnginePreference:     models.EnginePreference(strings.ToLower(req.GetString("engine", ""))),
		QualityThreshold:     req.GetFloat("quality_threshold", 0),
		DiversityWeight:      req.GetFloat("diversity_weight", 0),
		IncludeGlobalContent: req.GetBool("include_global", false),
	}

	if err := s.recommender.Validate(rr); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := s.recommender.GetRecommendations(ctx, rr)
	return jsonResult(results)
}

// metricsHandler handles the get_performance_metrics tool call.
func (s *Server) metricsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.recommender.GetPerformanceMetrics())
}

// intentHandler handles the resolve_intent tool call.
func (s *Server) intentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text parameter is required"), nil
	}

	techs := models.NormalizeTechnologies(strings.Split(req.GetString("technologies", ""), ","))
	resolved := s.resolver.Resolve(ctx, intent.Input{
		Text:         text,
		UserID:       req.GetString("user_id", ""),
		ProjectID:    req.GetString("project_id", ""),
		Technologies: techs,
	})
	return jsonResult(resolved)
}

// getContentHandler handles the get_content tool call.
func (s *Server) getContentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	raw, err := s.content.GetContent(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get content failed: %v", err)), nil
	}
	if raw == nil {
		return mcp.NewToolResultError(fmt.Sprintf("content not found: %s", id)), nil
	}
	return jsonResult(raw)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

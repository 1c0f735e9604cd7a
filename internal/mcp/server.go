package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/peopledex/peopledex/internal/config"
	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/search"
	"github.com/peopledex/peopledex/internal/store"
	"github.com/peopledex/peopledex/internal/telemetry"
	"github.com/peopledex/peopledex/pkg/version"
)

// Server is the MCP server for peopledex.
// It bridges AI clients (Claude Code, Cursor) with the directory search engine.
type Server struct {
	mcp    *mcp.Server
	engine *search.Engine
	people store.PeopleStore
	config *config.Config
	logger *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// SearchPeopleInput defines the input schema for the search_people tool.
type SearchPeopleInput struct {
	Query      string   `json:"query,omitempty" jsonschema:"name, title, bio, or expertise text; empty browses the whole directory"`
	PersonType string   `json:"person_type,omitempty" jsonschema:"filter by person type, e.g. faculty, fellow"`
	Unit       string   `json:"unit,omitempty" jsonschema:"filter by organizational unit"`
	Tags       []string `json:"tags,omitempty" jsonschema:"filter by tag names (OR logic)"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchPeopleOutput defines the output schema for the search_people tool.
type SearchPeopleOutput struct {
	Results []PersonOutput `json:"results" jsonschema:"matching people ordered by name"`
}

// PersonOutput is a person record in tool output.
type PersonOutput struct {
	ID         int64    `json:"id" jsonschema:"unique person identifier"`
	Name       string   `json:"name" jsonschema:"full name"`
	Title      string   `json:"title,omitempty" jsonschema:"job title"`
	Unit       string   `json:"unit,omitempty" jsonschema:"organizational unit"`
	PersonType string   `json:"type,omitempty" jsonschema:"person type, e.g. faculty"`
	Bio        string   `json:"bio,omitempty" jsonschema:"biography text"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tag names"`
	ProfileURL string   `json:"profile_url,omitempty" jsonschema:"public profile link"`
	Score      float64  `json:"similarity_score,omitempty" jsonschema:"cosine similarity, semantic results only"`
}

// SemanticSearchInput defines the input schema for the semantic_search tool.
type SemanticSearchInput struct {
	Query          string `json:"query" jsonschema:"natural language description of who to find"`
	K              int    `json:"k,omitempty" jsonschema:"number of results, default 10"`
	IncludeSummary *bool  `json:"include_summary,omitempty" jsonschema:"attach an AI summary of the results, default true"`
}

// SemanticSearchOutput defines the output schema for the semantic_search tool.
type SemanticSearchOutput struct {
	Results []PersonOutput `json:"results" jsonschema:"people ranked by similarity"`
	Summary string         `json:"ai_summary,omitempty" jsonschema:"AI-generated summary of the results"`
	Reason  string         `json:"error,omitempty" jsonschema:"why the result set is empty, when it is"`
}

// DirectoryStatusInput is the (empty) input schema for directory_status.
type DirectoryStatusInput struct{}

// DirectoryStatusOutput defines the output schema for the directory_status tool.
type DirectoryStatusOutput struct {
	PeopleCount       int    `json:"people_count" jsonschema:"records in the directory"`
	SemanticAvailable bool   `json:"semantic_search_available" jsonschema:"whether semantic search can serve queries"`
	EmbeddingsReady   bool   `json:"embeddings_configured" jsonschema:"whether an embedding provider credential is present"`
	SummaryReady      bool   `json:"llm_configured" jsonschema:"whether AI summarization is available"`
	IndexLoaded       bool   `json:"index_loaded" jsonschema:"whether a vector snapshot is in memory"`
	IndexCount        int    `json:"index_count" jsonschema:"vectors in the loaded snapshot"`
	IndexProvider     string `json:"index_provider,omitempty" jsonschema:"provider/model that produced the snapshot"`
	ConfigProvider    string `json:"config_provider,omitempty" jsonschema:"configured embedding provider"`
	ConfigModel       string `json:"config_model,omitempty" jsonschema:"configured embedding model override"`
}

// NewServer creates a new MCP server over a search engine and people store.
func NewServer(engine *search.Engine, peopleStore store.PeopleStore, cfg *config.Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if peopleStore == nil {
		return nil, errors.New("people store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine: engine,
		people: peopleStore,
		config: cfg,
		logger: slog.Default(),
	}

	// Create MCP server with implementation info
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "Peopledex",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	// Register tools
	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "Peopledex", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search_people",
			Description: searchPeopleDescription,
		},
		{
			Name:        "semantic_search",
			Description: semanticSearchDescription,
		},
		{
			Name:        "directory_status",
			Description: directoryStatusDescription,
		},
	}
}

// Tool descriptions shared between registration and ListTools.
const (
	searchPeopleDescription = "Find people by name, title, bio text, or expertise tags. " +
		"Matches word prefixes and tag substrings; supports person type, unit, and tag filters. " +
		"An empty query browses the directory with filters only."

	semanticSearchDescription = "Find people by meaning, not keywords. Describe who you are " +
		"looking for in natural language and get profiles ranked by similarity, optionally " +
		"with an AI-generated summary. Requires an embedding provider; check directory_status first."

	directoryStatusDescription = "Check directory health: record count, whether semantic search " +
		"and AI summaries are available, and whether the vector index is loaded."
)

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "search_people":
		return s.handleSearchPeopleTool(ctx, args)
	case "semantic_search":
		return s.handleSemanticSearchTool(ctx, args)
	case "directory_status":
		return s.handleDirectoryStatusTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchPeopleTool handles the search_people tool invocation.
// Returns markdown-formatted results.
func (s *Server) handleSearchPeopleTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	// Query is optional: empty browses with filters only
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)

	limit := clampLimit(0, 20, 1, 100) // default 20
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), 20, 1, 100)
	}

	f := search.Filters{}
	if pt, ok := args["person_type"].(string); ok {
		f.PersonType = pt
	}
	if unit, ok := args["unit"].(string); ok {
		f.Unit = unit
	}
	if tags, ok := args["tags"].([]interface{}); ok {
		for _, t := range tags {
			if str, ok := t.(string); ok {
				f.Tags = append(f.Tags, str)
			}
		}
	}

	s.logger.Info("search_people started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	results, err := s.engine.LexicalSearch(ctx, query, f)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search_people failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Info("search_people completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return FormatPeopleResults(query, results), nil
}

// handleSemanticSearchTool handles the semantic_search tool invocation.
// Returns markdown-formatted results, or the reason when semantic search
// cannot serve the query.
func (s *Server) handleSemanticSearchTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	k := 0
	if kv, ok := args["k"].(float64); ok {
		k = clampLimit(int(kv), 10, 1, 50)
	}
	includeSummary := true
	if inc, ok := args["include_summary"].(bool); ok {
		includeSummary = inc
	}

	s.logger.Info("semantic_search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("k", k))

	resp, err := s.engine.SemanticSearch(ctx, query, k, includeSummary)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("semantic_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("semantic_search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)),
		slog.String("reason", resp.Reason))

	return FormatSemanticResults(query, resp), nil
}

// handleDirectoryStatusTool handles the directory_status tool invocation.
// AI clients use this to decide whether semantic_search is worth calling.
func (s *Server) handleDirectoryStatusTool(ctx context.Context) (*DirectoryStatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("directory_status started",
		slog.String("request_id", requestID))

	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	output := &DirectoryStatusOutput{
		PeopleCount:       status.LexicalCount,
		SemanticAvailable: status.SemanticAvailable,
		EmbeddingsReady:   status.EmbeddingsReady,
		SummaryReady:      status.SummaryReady,
		IndexLoaded:       status.IndexLoaded,
		IndexCount:        status.IndexCount,
		IndexProvider:     status.IndexProvider,
		ConfigProvider:    s.config.Embeddings.Provider,
		ConfigModel:       s.config.Embeddings.Model,
	}

	s.logger.Info("directory_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("people_count", output.PeopleCount),
		slog.Bool("semantic_available", output.SemanticAvailable))

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_people",
		Description: searchPeopleDescription,
	}, s.mcpSearchPeopleHandler)
	s.logger.Debug("Registered tool", slog.String("name", "search_people"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: semanticSearchDescription,
	}, s.mcpSemanticSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "semantic_search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "directory_status",
		Description: directoryStatusDescription,
	}, s.mcpDirectoryStatusHandler)
	s.logger.Debug("Registered tool", slog.String("name", "directory_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// mcpSearchPeopleHandler is the MCP SDK handler for the search_people tool.
func (s *Server) mcpSearchPeopleHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchPeopleInput) (
	*mcp.CallToolResult,
	SearchPeopleOutput,
	error,
) {
	limit := clampLimit(input.Limit, 20, 1, 100)

	f := search.Filters{
		PersonType: input.PersonType,
		Unit:       input.Unit,
		Tags:       input.Tags,
	}

	results, err := s.engine.LexicalSearch(ctx, strings.TrimSpace(input.Query), f)
	if err != nil {
		return nil, SearchPeopleOutput{}, MapError(err)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	output := SearchPeopleOutput{
		Results: make([]PersonOutput, 0, len(results)),
	}
	for _, p := range results {
		output.Results = append(output.Results, toPersonOutput(p, 0))
	}

	return nil, output, nil
}

// mcpSemanticSearchHandler is the MCP SDK handler for the semantic_search tool.
func (s *Server) mcpSemanticSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (
	*mcp.CallToolResult,
	SemanticSearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SemanticSearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	k := 0
	if input.K > 0 {
		k = clampLimit(input.K, 10, 1, 50)
	}
	includeSummary := input.IncludeSummary == nil || *input.IncludeSummary

	resp, err := s.engine.SemanticSearch(ctx, input.Query, k, includeSummary)
	if err != nil {
		return nil, SemanticSearchOutput{}, MapError(err)
	}

	output := SemanticSearchOutput{
		Results: make([]PersonOutput, 0, len(resp.Results)),
		Summary: resp.Summary,
		Reason:  resp.Reason,
	}
	for _, r := range resp.Results {
		output.Results = append(output.Results, toPersonOutput(r.Person, r.Score))
	}

	return nil, output, nil
}

// mcpDirectoryStatusHandler is the MCP SDK handler for the directory_status tool.
func (s *Server) mcpDirectoryStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ DirectoryStatusInput) (
	*mcp.CallToolResult,
	*DirectoryStatusOutput,
	error,
) {
	output, err := s.handleDirectoryStatusTool(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// toPersonOutput converts a person record to the tool output shape.
func toPersonOutput(p people.Person, score float64) PersonOutput {
	out := PersonOutput{
		ID:         p.ID,
		Name:       p.Name,
		Title:      p.Title,
		Unit:       p.Unit,
		PersonType: p.PersonType,
		Bio:        p.Bio,
		ProfileURL: p.ProfileURL,
		Score:      score,
	}
	for _, t := range p.Tags {
		out.Tags = append(out.Tags, t.Name)
	}
	return out
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		// SSE transport not yet implemented in SDK
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server doesn't have a Close method - it stops when context is canceled
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

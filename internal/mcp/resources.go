package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/peopledex/peopledex/internal/people"
)

// personURIScheme is the URI scheme for person card resources.
const personURIScheme = "person://"

// RegisterResources registers every person record as an MCP resource.
// This should be called after the server is created and before serving.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persons, err := s.people.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list people: %w", err)
	}

	for i := range persons {
		s.registerPersonResource(persons[i])
	}

	s.logger.Info("registered resources", "count", len(persons))
	return nil
}

// registerPersonResource registers a single person card as an MCP resource.
func (s *Server) registerPersonResource(p people.Person) {
	uri := PersonURI(p.ID)

	desc := p.Title
	if p.Unit != "" {
		if desc != "" {
			desc += ", "
		}
		desc += p.Unit
	}

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        p.Name,
			URI:         uri,
			Description: desc,
			MIMEType:    "application/json",
		},
		s.makePersonHandler(p.ID),
	)
}

// PersonURI builds the resource URI for a person ID.
func PersonURI(id int64) string {
	return fmt.Sprintf("%s%d", personURIScheme, id)
}

// ParsePersonURI extracts the person ID from a person:// URI.
func ParsePersonURI(uri string) (int64, error) {
	if !strings.HasPrefix(uri, personURIScheme) {
		return 0, ErrResourceNotFound
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, personURIScheme), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrResourceNotFound
	}
	return id, nil
}

// makePersonHandler creates a read handler for a specific person ID.
func (s *Server) makePersonHandler(id int64) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadPerson(ctx, id)
	}
}

// ReadResource reads a person card by URI. Exposed for tests and callers
// that bypass the SDK transport.
func (s *Server) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	id, err := ParsePersonURI(uri)
	if err != nil {
		return nil, NewResourceNotFoundError(uri)
	}
	return s.handleReadPerson(ctx, id)
}

// handleReadPerson fetches a person record and renders it as a JSON card.
// The card reflects the store at read time, not registration time.
func (s *Server) handleReadPerson(ctx context.Context, id int64) (*mcp.ReadResourceResult, error) {
	p, err := s.people.Get(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if p == nil {
		return nil, &MCPError{
			Code:    ErrCodePersonNotFound,
			Message: fmt.Sprintf("person %d not found", id),
		}
	}

	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      PersonURI(id),
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	TimePeriod    string  `json:"time_period"`
	ZeroResultPct float64 `json:"zero_result_pct"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "peopledex://query_metrics",
			Description: "Query pattern telemetry for search optimization",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates a handler for the query_metrics resource.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		s.mu.RLock()
		metrics := s.metrics
		s.mu.RUnlock()

		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		snapshot := metrics.Snapshot()

		output := QueryMetricsOutput{
			Summary: QueryMetricsSummary{
				TotalQueries:  snapshot.TotalQueries,
				TimePeriod:    "session",
				ZeroResultPct: snapshot.ZeroResultPercentage(),
			},
			QueryTypeCounts:     make(map[string]int64),
			TopTerms:            make([]QueryTermCount, 0, len(snapshot.TopTerms)),
			ZeroResultQueries:   snapshot.ZeroResultQueries,
			LatencyDistribution: make(map[string]int64),
		}

		for qt, count := range snapshot.QueryTypeCounts {
			output.QueryTypeCounts[string(qt)] = count
		}

		for _, tc := range snapshot.TopTerms {
			output.TopTerms = append(output.TopTerms, QueryTermCount{
				Term:  tc.Term,
				Count: tc.Count,
			})
		}

		for bucket, count := range snapshot.LatencyDistribution {
			output.LatencyDistribution[string(bucket)] = count
		}

		content, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return nil, MapError(err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      "peopledex://query_metrics",
					MIMEType: "application/json",
					Text:     string(content),
				},
			},
		}, nil
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/grepvec/grepvec/internal/indexer"
	"github.com/grepvec/grepvec/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another ingestion run is already active
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	prune := getBoolDefault(args, "prune", false)

	docs, err := s.loader.Load()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load codebase", map[string]interface{}{
			"error": err.Error(),
		})
	}

	report, err := s.indexer.Ingest(ctx, docs)
	if err != nil {
		if errors.Is(err, indexer.ErrRunInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "an ingestion run is already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"run_id":          report.RunID,
		"documents":       len(docs),
		"chunks_inserted": report.Inserted,
		"chunks_skipped":  report.Skipped,
		"chunks_failed":   report.Failed,
		"duration_ms":     report.Duration.Milliseconds(),
	}

	if len(report.Errors) > 0 {
		errorCount := len(report.Errors)
		if errorCount > 5 {
			response["errors"] = report.Errors[:5]
		} else {
			response["errors"] = report.Errors
		}
		response["error_count"] = errorCount
	}

	if prune {
		removed, err := s.indexer.Prune(ctx, docs)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "prune failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["chunks_pruned"] = removed
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.cfg.Query.Limit)
	topN := getIntDefault(args, "top_n", s.cfg.Query.TopN)
	if topN > limit {
		topN = limit
	}

	results, err := s.searcher.Query(ctx, query, limit, topN)
	if err != nil {
		if errors.Is(err, types.ErrInvalidQueryParams) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, len(results))
	for i, r := range results {
		formatted[i] = map[string]interface{}{
			"path":       r.Metadata.SourcePath,
			"language":   r.Metadata.Language,
			"start_line": r.Metadata.StartLine,
			"end_line":   r.Metadata.EndLine,
			"score":      r.Score,
			"distance":   r.Distance,
			"text":       r.Text,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"results": formatted,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read store", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"root":            s.cfg.Root,
		"store":           s.cfg.StorePath,
		"chunks_indexed":  count,
		"metric":          s.cfg.Metric,
		"embedding_model": s.cfg.Embedding.Model,
		"dimension":       s.cfg.Embedding.Dimension,
		"reranker_model":  s.cfg.Reranker.Model,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

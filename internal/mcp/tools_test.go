package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolDefinitions(t *testing.T) {
	idx := indexCodebaseTool()
	assert.Equal(t, "index_codebase", idx.Name)
	assert.Contains(t, idx.InputSchema.Properties, "prune")

	search := searchCodeTool()
	assert.Equal(t, "search_code", search.Name)
	assert.Equal(t, []string{"query"}, search.InputSchema.Required)
	assert.Contains(t, search.InputSchema.Properties, "limit")
	assert.Contains(t, search.InputSchema.Properties, "top_n")

	status := getStatusTool()
	assert.Equal(t, "get_status", status.Name)
}

func TestGetBoolDefault(t *testing.T) {
	args := map[string]interface{}{"set": true}
	assert.True(t, getBoolDefault(args, "set", false))
	assert.True(t, getBoolDefault(args, "missing", true))
	assert.False(t, getBoolDefault(nil, "missing", false))
}

func TestGetIntDefault(t *testing.T) {
	// JSON numbers arrive as float64.
	args := map[string]interface{}{"n": float64(7)}
	assert.Equal(t, 7, getIntDefault(args, "n", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
}

func TestMCPError_Error(t *testing.T) {
	err := newMCPError(ErrorCodeEmptyQuery, "query required", nil)
	assert.Contains(t, err.Error(), "query required")
}

// Package tools holds the capabilities the model may invoke during a
// query: content search and outline lookup. Each tool records the sources
// of its most recent invocation so answers can carry citations.
package tools

import (
	"context"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

// Source is one citation produced by a tool execution.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// Tool is one model-invocable capability. Execute returns recoverable
// conditions (nothing found, bad course name) as plain text with a nil
// error; a non-nil error means the whole exchange failed.
type Tool interface {
	Name() string
	Definition() domain.ToolDefinition
	Execute(ctx context.Context, args map[string]any) (string, error)
	LastSources() []Source
	ResetSources()
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an integer argument. JSON-decoded numbers arrive as
// float64.
func intArg(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	default:
		return nil
	}
}

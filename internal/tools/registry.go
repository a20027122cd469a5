package tools

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/metrics"
)

// Registry resolves tool names to implementations and aggregates the
// sources of the latest round of executions.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool
// but keeps its position.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions returns every tool schema in registration order.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. An unknown name is a recoverable condition
// reported back to the model as text; tool errors propagate unchanged.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		metrics.ToolExecutionsTotal.WithLabelValues(name, "unknown").Inc()
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		metrics.ToolExecutionsTotal.WithLabelValues(name, "error").Inc()
		return "", err
	}
	metrics.ToolExecutionsTotal.WithLabelValues(name, "ok").Inc()
	return out, nil
}

// LastSources concatenates every tool's latest sources in registration
// order without consuming them.
func (r *Registry) LastSources() []Source {
	var sources []Source
	for _, name := range r.order {
		sources = append(sources, r.tools[name].LastSources()...)
	}
	return sources
}

// ResetSources clears the recorded sources of every tool.
func (r *Registry) ResetSources() {
	for _, t := range r.tools {
		t.ResetSources()
	}
}

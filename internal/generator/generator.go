// Package generator orchestrates one exchange with the model: a first
// call that may request tools, at most one round of tool executions, and
// a closing call without tools.
package generator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with tools to look up course information.

Tool usage:
- search_course_content: searches inside course materials for specific content
- get_course_outline: returns a course's title, link and complete lesson list
- Maximum one tool call per query. Decide which tool fits, call it once, then answer from the results.

Response protocol:
- General knowledge questions: answer from your own knowledge, no tools.
- Course content questions: use search_course_content, then answer from what it returns.
- Course outline questions: use get_course_outline and present the course title, link and every lesson with its number and title.
- If a tool returns nothing useful, say so briefly instead of guessing.

Keep answers brief, concrete and educational. Do not mention the tools or the search process in the answer.`

// ToolExecutor runs one named tool. Recoverable conditions come back as
// text; a non-nil error aborts the exchange.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Generator drives the chat client. It never chains tool rounds: after
// one round of executions the closing call carries no tool definitions.
type Generator struct {
	client domain.ChatClient
	log    *zap.Logger
}

// New creates a Generator.
func New(client domain.ChatClient, log *zap.Logger) *Generator {
	return &Generator{client: client, log: log}
}

// Generate answers one user query. Conversation history is embedded into
// the system prompt, never replayed as separate messages.
func (g *Generator) Generate(ctx context.Context, query, history string, tools []domain.ToolDefinition, exec ToolExecutor) (string, error) {
	system := systemPrompt
	if history != "" {
		system += "\n\nPrevious conversation:\n" + history
	}

	req := &domain.ChatRequest{
		System:   system,
		Messages: []domain.Message{domain.UserText(query)},
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoiceAuto = true
	}

	reply, err := g.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	if reply.StopReason == domain.StopToolUse {
		if uses := reply.ToolUses(); len(uses) > 0 {
			return g.finishToolRound(ctx, req, reply, uses, exec)
		}
	}

	text := reply.FirstText()
	if text == "" {
		return "", domain.ErrEmptyReply
	}
	return text, nil
}

// finishToolRound executes every requested tool, feeds the results back
// and closes with a call that offers no tools, which caps the exchange at
// a single round.
func (g *Generator) finishToolRound(ctx context.Context, req *domain.ChatRequest, reply *domain.Reply, uses []domain.ToolUse, exec ToolExecutor) (string, error) {
	g.log.Debug("model requested tools", zap.Int("count", len(uses)))

	results := make([]domain.ContentBlock, 0, len(uses))
	for _, use := range uses {
		out, err := exec.Execute(ctx, use.Name, use.Input)
		if err != nil {
			return "", fmt.Errorf("execute tool %s: %w", use.Name, err)
		}
		results = append(results, domain.ToolResultBlock(use.ID, out))
	}

	messages := make([]domain.Message, 0, len(req.Messages)+2)
	messages = append(messages, req.Messages...)
	messages = append(messages,
		domain.Message{Role: domain.RoleAssistant, Content: reply.Content},
		domain.Message{Role: domain.RoleUser, Content: results},
	)

	final, err := g.client.Chat(ctx, &domain.ChatRequest{System: req.System, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat after tools: %w", err)
	}

	text := final.FirstText()
	if text == "" {
		return "", domain.ErrEmptyReply
	}
	return text, nil
}

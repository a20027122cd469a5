package domain

import "context"

// Role of a conversation message.
type Role string

const (
	// RoleUser is the end-user side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant is the model side of the conversation.
	RoleAssistant Role = "assistant"
)

// StopReason explains why the model stopped generating.
type StopReason string

const (
	// StopEndTurn means the model produced a final answer.
	StopEndTurn StopReason = "end_turn"
	// StopToolUse means the model requested one or more tool executions.
	StopToolUse StopReason = "tool_use"
)

// BlockType discriminates the content block variants.
type BlockType string

const (
	// BlockText is a plain text block.
	BlockText BlockType = "text"
	// BlockToolUse is a tool invocation request from the model.
	BlockToolUse BlockType = "tool_use"
	// BlockToolResult carries the output of an executed tool back to the model.
	BlockToolResult BlockType = "tool_result"
)

// ToolUse is a single tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult answers one ToolUse, matched by ToolUseID.
type ToolResult struct {
	ToolUseID string
	Content   string
}

// ContentBlock is a tagged variant: exactly one of Text, ToolUse or
// ToolResult is meaningful, selected by Type.
type ContentBlock struct {
	Type       BlockType
	Text       string
	ToolUse    *ToolUse
	ToolResult *ToolResult
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

// ToolResultBlock builds a tool_result content block.
func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResult: &ToolResult{ToolUseID: toolUseID, Content: content}}
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// UserText builds a user message with a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// Reply is the model's answer to a ChatRequest.
type Reply struct {
	Content    []ContentBlock
	StopReason StopReason
}

// FirstText returns the first text block of the reply, or "".
func (r *Reply) FirstText() string {
	for _, b := range r.Content {
		if b.Type == BlockText {
			return b.Text
		}
	}
	return ""
}

// ToolUses returns all tool_use blocks in reply order.
func (r *Reply) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, b := range r.Content {
		if b.Type == BlockToolUse && b.ToolUse != nil {
			uses = append(uses, *b.ToolUse)
		}
	}
	return uses
}

// SchemaProperty describes one parameter in a tool input schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// InputSchema is the JSON-schema shape of a tool's parameters.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// ToolDefinition is the schema surfaced to the model for one tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ChatRequest is one exchange with the model. System carries the fixed
// instructions (and, when present, the prior-conversation transcript);
// prior turns are never sent as separate messages.
type ChatRequest struct {
	System         string
	Messages       []Message
	Tools          []ToolDefinition
	ToolChoiceAuto bool
}

// ChatClient is the LLM collaborator contract. Transport and API failures
// are returned as errors wrapping ErrLLMProvider and are never recoverable
// at this layer.
type ChatClient interface {
	Chat(ctx context.Context, req *ChatRequest) (*Reply, error)
}

// Embedder turns text into a vector. The embedding model itself is an
// external collaborator.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

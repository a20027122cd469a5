package domain

import "errors"

var (
	// ErrLLMProvider signals an LLM transport or API failure.
	ErrLLMProvider = errors.New("llm provider error")
	// ErrEmptyReply signals a model reply with no usable content.
	ErrEmptyReply = errors.New("empty model reply")
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
)

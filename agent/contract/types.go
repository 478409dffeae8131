package contract

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConvState tracks whether a conversation is waiting on draft confirmation.
type ConvState string

const (
	ConvNormal               ConvState = "normal"
	ConvAwaitingConfirmation ConvState = "awaiting_confirmation"
)

type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftConfirmed DraftStatus = "confirmed"
	DraftDiscarded DraftStatus = "discarded"
)

type Conversation struct {
	ID              string    `json:"id"`
	CorrespondentID string    `json:"correspondent_id"`
	State           ConvState `json:"state"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// DraftItem is one proposed write operation: a tool name plus its input.
type DraftItem struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

type Draft struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Items          []DraftItem `json:"items"`
	Summary        string      `json:"summary"`
	Status         DraftStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// ToolCall is a single invocation requested by the generative service.
// Round-scoped; never persisted.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult carries the outcome of one ToolCall back into the round.
// Failures travel as data (IsError + Content), never as Go errors.
type ToolResult struct {
	CallID  string `json:"tool_call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolContext is supplied uniformly to every dispatched operation. Operations
// must take identity from here and nowhere else.
type ToolContext struct {
	TenantID        string
	ConversationID  string
	CorrespondentID string
}

// ToolSpec declares one tool to the generative service.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Turn is one role-tagged entry in the history sequence sent to the
// generative service.
type Turn struct {
	Role    Role
	Content string
}

// Reply is a single round's answer from the generative service: either a
// terminal text or a batch of requested tool invocations.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

func (r Reply) WantsTools() bool {
	return len(r.ToolCalls) > 0
}

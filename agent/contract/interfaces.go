package contract

import "context"

// ChatService opens exchanges with the generative reasoning service.
type ChatService interface {
	// NewExchange starts a negotiation over the given history plus the
	// annotated current user message. The exchange owns the growing wire
	// transcript for the duration of one user turn.
	NewExchange(system string, history []Turn, userMessage string) Exchange

	// Decide runs a narrow one-shot prompt (no tools) and returns the raw
	// text. Used by the confirmation disambiguation path.
	Decide(ctx context.Context, system, input string) (string, error)
}

// Exchange is one bounded negotiation with the generative service.
type Exchange interface {
	// Next sends the transcript plus the tool catalog and returns the
	// service's reply for this round.
	Next(ctx context.Context, tools []ToolSpec) (Reply, error)

	// PushResults appends the results of the previously returned tool calls
	// to the transcript, as a single results turn.
	PushResults(results []ToolResult)

	// Final sends the transcript without any tool catalog, forcing a
	// terminal text answer.
	Final(ctx context.Context) (string, error)
}

// Dispatcher executes a named tool. Unknown names and operation failures are
// reported inside the ToolResult, never as an error.
type Dispatcher interface {
	Execute(ctx context.Context, tc ToolContext, call ToolCall) ToolResult
	Specs() []ToolSpec
}

type ConversationStore interface {
	GetOrCreate(ctx context.Context, correspondentID string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	// TransitionState flips conv_state only when the stored value still
	// matches from; reports whether the swap happened.
	TransitionState(ctx context.Context, id string, from, to ConvState) (bool, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *Message) error
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

type DraftStore interface {
	// CreatePending stores the draft and moves the conversation to
	// awaiting_confirmation in one transaction. Fails if a pending draft
	// already exists for the conversation.
	CreatePending(ctx context.Context, draft *Draft) error
	Pending(ctx context.Context, conversationID string) (*Draft, error)
	// Resolve marks a pending draft confirmed or discarded and reverts the
	// conversation to normal in one transaction.
	Resolve(ctx context.Context, draftID string, status DraftStatus) error
}

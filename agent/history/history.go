// Package history builds the windowed message history handed to the
// generative service.
package history

import (
	"context"
	"fmt"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

// Window loads the most recent limit messages of a conversation in
// chronological order and merges adjacent same-role entries into single
// turns. The generative service requires strictly alternating roles, while
// the stored stream may carry consecutive same-role entries (multi-message
// bursts, tool-result turns collapsed to assistant).
func Window(ctx context.Context, msgs contractx.MessageStore, conversationID string, limit int) ([]contractx.Turn, error) {
	recent, err := msgs.Recent(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history window: %w", err)
	}

	// Storage returns newest first; reverse into chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return MergeTurns(recent), nil
}

// MergeTurns collapses adjacent same-role messages by concatenating their
// content with a newline. Order-preserving and lossless.
func MergeTurns(msgs []contractx.Message) []contractx.Turn {
	turns := make([]contractx.Turn, 0, len(msgs))
	for _, m := range msgs {
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n" + m.Content
			continue
		}
		turns = append(turns, contractx.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

package history

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type fakeMsgStore struct {
	msgs []contractx.Message
	err  error
}

func (f *fakeMsgStore) Append(ctx context.Context, msg *contractx.Message) error {
	f.msgs = append([]contractx.Message{*msg}, f.msgs...)
	return nil
}

func (f *fakeMsgStore) Recent(ctx context.Context, conversationID string, limit int) ([]contractx.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.msgs) > limit {
		return append([]contractx.Message(nil), f.msgs[:limit]...), nil
	}
	return append([]contractx.Message(nil), f.msgs...), nil
}

func TestWindowReversesIntoChronologicalOrder(t *testing.T) {
	t.Parallel()

	store := &fakeMsgStore{msgs: []contractx.Message{
		{Role: contractx.RoleAssistant, Content: "tercero"},
		{Role: contractx.RoleUser, Content: "segundo"},
		{Role: contractx.RoleAssistant, Content: "primero"},
	}}

	turns, err := Window(context.Background(), store, "c1", 10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "primero" || turns[2].Content != "tercero" {
		t.Fatalf("window must be chronological, got %+v", turns)
	}
}

func TestWindowAppliesLimit(t *testing.T) {
	t.Parallel()

	store := &fakeMsgStore{msgs: []contractx.Message{
		{Role: contractx.RoleAssistant, Content: "nuevo"},
		{Role: contractx.RoleUser, Content: "medio"},
		{Role: contractx.RoleAssistant, Content: "viejo"},
	}}

	turns, err := Window(context.Background(), store, "c1", 2)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "medio" || turns[1].Content != "nuevo" {
		t.Fatalf("limit must keep the newest messages, got %+v", turns)
	}
}

func TestWindowPropagatesStoreError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("db down")
	store := &fakeMsgStore{err: wantErr}
	if _, err := Window(context.Background(), store, "c1", 5); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestMergeTurnsCollapsesAdjacentSameRole(t *testing.T) {
	t.Parallel()

	turns := MergeTurns([]contractx.Message{
		{Role: contractx.RoleUser, Content: "hola"},
		{Role: contractx.RoleUser, Content: "¿estás ahí?"},
		{Role: contractx.RoleAssistant, Content: "sí, dime"},
		{Role: contractx.RoleUser, Content: "ya"},
	})

	if len(turns) != 3 {
		t.Fatalf("expected 3 merged turns, got %d: %+v", len(turns), turns)
	}
	if turns[0].Content != "hola\n¿estás ahí?" {
		t.Fatalf("adjacent same-role content must join with newline, got %q", turns[0].Content)
	}
	if turns[0].Role != contractx.RoleUser || turns[1].Role != contractx.RoleAssistant || turns[2].Role != contractx.RoleUser {
		t.Fatalf("roles must strictly alternate after merge, got %+v", turns)
	}
}

func TestMergeTurnsThreeSameRole(t *testing.T) {
	t.Parallel()

	msgs := []contractx.Message{
		{Role: contractx.RoleUser, Content: "a"},
		{Role: contractx.RoleUser, Content: "b"},
		{Role: contractx.RoleUser, Content: "c"},
	}

	whole := MergeTurns(msgs)

	// Merging the first pair and then appending the third must equal one
	// pass over all three.
	partial := MergeTurns(msgs[:2])
	partial = MergeTurns([]contractx.Message{
		{Role: partial[0].Role, Content: partial[0].Content},
		msgs[2],
	})

	if len(whole) != 1 || len(partial) != 1 || whole[0].Content != partial[0].Content {
		t.Fatalf("merge must be order-independent: %+v vs %+v", whole, partial)
	}
	if whole[0].Content != "a\nb\nc" {
		t.Fatalf("unexpected merged content %q", whole[0].Content)
	}
}

func TestMergeTurnsEmpty(t *testing.T) {
	t.Parallel()

	if turns := MergeTurns(nil); len(turns) != 0 {
		t.Fatalf("expected no turns, got %+v", turns)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

// Deterministic reply patterns, evaluated before any model call. Anchored at
// the start of the trimmed message, case-insensitive.
var (
	affirmativeRe = regexp.MustCompile(`(?i)^(ok(ay)?|sí|si|ya|dale|listo|bueno|confirmo|confirmar|yes)\b`)
	negativeRe    = regexp.MustCompile(`(?i)^(mejor no|no|nop|skip|cancela(r|lo)?|descarta(r|lo)?)\b`)
)

// Disambiguation sentinels the fallback prompt is constrained to.
const (
	SentinelConfirm = "CONFIRMAR"
	SentinelDiscard = "DESCARTAR"
)

// confirm interprets a user reply while a draft is pending. It returns the
// reply text, or reenter=true when the conversation self-healed and the
// message must be processed as a fresh turn.
func (e *Engine) confirm(ctx context.Context, conv *contractx.Conversation, text string) (reply string, reenter bool, err error) {
	draft, err := e.drafts.Pending(ctx, conv.ID)
	if errors.Is(err, contractx.ErrNoPendingDraft) {
		// State says awaiting but no draft exists: repair and treat the
		// message as a fresh turn.
		log.Warn().Str("conversation_id", conv.ID).Msg("awaiting_confirmation without pending draft, self-healing")
		if _, err := e.convs.TransitionState(ctx, conv.ID,
			contractx.ConvAwaitingConfirmation, contractx.ConvNormal); err != nil {
			return "", false, err
		}
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case affirmativeRe.MatchString(trimmed):
		reply, err = e.executeDraft(ctx, conv, draft)
		return reply, false, err
	case negativeRe.MatchString(trimmed):
		reply, err = e.discardDraft(ctx, conv, draft)
		return reply, false, err
	}

	// Ambiguous free text: one narrow model call over the draft summary and
	// the reply, constrained to the two sentinels or a clarification.
	input := fmt.Sprintf("Lote pendiente:\n%s\n\nRespuesta del usuario:\n%s", draft.Summary, trimmed)
	decision, err := e.chat.Decide(ctx, e.prompts.Disambiguate, input)
	if err != nil {
		return "", false, err
	}

	switch normalizeSentinel(decision) {
	case SentinelConfirm:
		reply, err = e.executeDraft(ctx, conv, draft)
		return reply, false, err
	case SentinelDiscard:
		reply, err = e.discardDraft(ctx, conv, draft)
		return reply, false, err
	default:
		// Clarification: relay it, conversation stays awaiting.
		return decision, false, nil
	}
}

func normalizeSentinel(s string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(s), ".!¡"))
}

// executeDraft dispatches every item in order, collecting failures without
// aborting the batch, then reports the outcome. The confirmed transition
// happens first so a concurrently delivered second "ok" cannot re-run the
// batch.
func (e *Engine) executeDraft(ctx context.Context, conv *contractx.Conversation, draft *contractx.Draft) (string, error) {
	if err := e.drafts.Resolve(ctx, draft.ID, contractx.DraftConfirmed); err != nil {
		if errors.Is(err, contractx.ErrStateConflict) {
			conv.State = contractx.ConvNormal
			return "Esa propuesta ya fue procesada.", nil
		}
		return "", err
	}
	conv.State = contractx.ConvNormal

	tc := e.toolContext(conv)
	var failures []string
	for i, item := range draft.Items {
		call := contractx.ToolCall{
			ID:    fmt.Sprintf("draft-item-%d", i+1),
			Name:  item.Tool,
			Input: item.Input,
		}
		res := e.tools.Execute(ctx, tc, call)
		if res.IsError {
			failures = append(failures, fmt.Sprintf("%s: %s", item.Tool, res.Content))
		}
	}

	log.Info().
		Str("conversation_id", conv.ID).
		Str("draft_id", draft.ID).
		Int("items", len(draft.Items)).
		Int("failures", len(failures)).
		Msg("draft confirmed")

	if len(failures) == 0 {
		if len(draft.Items) == 1 {
			return "Listo, registré la acción.", nil
		}
		return fmt.Sprintf("Listo, registré las %d acciones.", len(draft.Items)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registré %d de %d acciones. Fallaron %d:",
		len(draft.Items)-len(failures), len(draft.Items), len(failures))
	for _, f := range failures {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String(), nil
}

// discardDraft marks the draft discarded without dispatching anything.
func (e *Engine) discardDraft(ctx context.Context, conv *contractx.Conversation, draft *contractx.Draft) (string, error) {
	if err := e.drafts.Resolve(ctx, draft.ID, contractx.DraftDiscarded); err != nil {
		if errors.Is(err, contractx.ErrStateConflict) {
			conv.State = contractx.ConvNormal
			return "Esa propuesta ya fue procesada.", nil
		}
		return "", err
	}
	conv.State = contractx.ConvNormal

	log.Info().
		Str("conversation_id", conv.ID).
		Str("draft_id", draft.ID).
		Msg("draft discarded")

	return "Descartado, no registré nada.", nil
}

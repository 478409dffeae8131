package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

// ToolProposeActions is the draft-submission tool: its input becomes a
// pending draft instead of executing business logic.
const ToolProposeActions = "proponer_acciones"

func draftToolSpec() contractx.ToolSpec {
	return contractx.ToolSpec{
		Name:        ToolProposeActions,
		Description: "Propone un lote ordenado de operaciones de escritura para que el usuario lo confirme.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":        "array",
					"description": "Operaciones a ejecutar en orden tras la confirmación",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"tool":  map[string]any{"type": "string"},
							"input": map[string]any{"type": "object"},
						},
						"required": []string{"tool", "input"},
					},
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "Resumen legible del lote para mostrar al usuario",
				},
			},
			"required": []string{"items", "summary"},
		},
	}
}

type draftSubmission struct {
	Items   []contractx.DraftItem `json:"items"`
	Summary string                `json:"summary"`
}

// negotiate runs the bounded multi-round exchange with the generative
// service. Each round either finishes with text, requests tool calls, or
// stages a draft; after MaxRounds tool rounds one final call without the
// catalog forces a terminal answer.
func (e *Engine) negotiate(ctx context.Context, conv *contractx.Conversation, window []contractx.Turn, text string) (string, error) {
	ex := e.chat.NewExchange(e.prompts.System, window, currentTurnTag+" "+text)
	catalog := append(e.tools.Specs(), draftToolSpec())
	tc := e.toolContext(conv)

	for round := 0; round < e.cfg.MaxRounds; round++ {
		reply, err := ex.Next(ctx, catalog)
		if err != nil {
			return "", err
		}
		if !reply.WantsTools() {
			return reply.Text, nil
		}

		results := make([]contractx.ToolResult, 0, len(reply.ToolCalls))
		staged := false
		for _, call := range reply.ToolCalls {
			if call.Name == ToolProposeActions {
				res := e.stageDraft(ctx, conv, call)
				staged = staged || !res.IsError
				results = append(results, res)
				continue
			}
			results = append(results, e.tools.Execute(ctx, tc, call))
		}
		ex.PushResults(results)

		log.Debug().
			Str("conversation_id", conv.ID).
			Int("round", round+1).
			Int("tool_calls", len(reply.ToolCalls)).
			Bool("draft_staged", staged).
			Msg("negotiation round")

		// A staged draft ends the negotiation: one closing call, without
		// the catalog, yields the confirmation-prompt text.
		if staged {
			closing, err := ex.Final(ctx)
			if err != nil || closing == "" {
				if err != nil {
					log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("closing call after draft failed")
				}
				return "Tengo un lote de acciones listo. ¿Lo confirmas? (ok / no)", nil
			}
			return closing, nil
		}
	}

	// Round budget exhausted: force a text answer.
	return ex.Final(ctx)
}

// stageDraft converts a draft-submission call into a pending draft and the
// awaiting_confirmation transition. Malformed or conflicting submissions
// come back as is_error results so the round can continue.
func (e *Engine) stageDraft(ctx context.Context, conv *contractx.Conversation, call contractx.ToolCall) contractx.ToolResult {
	var sub draftSubmission
	if err := json.Unmarshal(call.Input, &sub); err != nil {
		return contractx.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("entrada inválida: %v", err),
			IsError: true,
		}
	}
	if len(sub.Items) == 0 {
		return contractx.ToolResult{
			CallID:  call.ID,
			Content: "el lote no contiene operaciones",
			IsError: true,
		}
	}

	draft := &contractx.Draft{
		ConversationID: conv.ID,
		Items:          sub.Items,
		Summary:        sub.Summary,
	}
	if err := e.drafts.CreatePending(ctx, draft); err != nil {
		return contractx.ToolResult{
			CallID:  call.ID,
			Content: err.Error(),
			IsError: true,
		}
	}

	conv.State = contractx.ConvAwaitingConfirmation
	log.Info().
		Str("conversation_id", conv.ID).
		Str("draft_id", draft.ID).
		Int("items", len(draft.Items)).
		Msg("draft staged")

	return contractx.ToolResult{CallID: call.ID, Content: "lote registrado, pendiente de confirmación"}
}

// Package tool maps tool names to executable operations. The registry is
// resolved once at startup; dispatch failures are captured as data so a
// failing call never aborts the round or the batch it belongs to.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

// Handler executes one operation. Returned errors are converted into
// is_error results by Execute; handlers never see each other's failures.
type Handler func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error)

type Operation struct {
	Spec     contractx.ToolSpec
	Mutating bool
	Run      Handler
}

type Registry struct {
	ops   map[string]Operation
	order []string
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

var _ contractx.Dispatcher = (*Registry)(nil)

func (r *Registry) Register(op Operation) error {
	if op.Spec.Name == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if op.Run == nil {
		return fmt.Errorf("%w: tool handler is required", contractx.ErrValidation)
	}
	if _, exists := r.ops[op.Spec.Name]; exists {
		return fmt.Errorf("%w: tool %q already registered", contractx.ErrValidation, op.Spec.Name)
	}
	r.ops[op.Spec.Name] = op
	r.order = append(r.order, op.Spec.Name)
	return nil
}

func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Execute runs the named operation with the caller's identity context.
// Unknown names and handler failures come back as is_error results.
func (r *Registry) Execute(ctx context.Context, tc contractx.ToolContext, call contractx.ToolCall) contractx.ToolResult {
	op, ok := r.ops[call.Name]
	if !ok {
		return contractx.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("herramienta desconocida: %s", call.Name),
			IsError: true,
		}
	}

	out, err := op.Run(ctx, tc, call.Input)
	if err != nil {
		log.Warn().Err(err).
			Str("tool", call.Name).
			Str("conversation_id", tc.ConversationID).
			Msg("tool execution failed")
		return contractx.ToolResult{
			CallID:  call.ID,
			Content: err.Error(),
			IsError: true,
		}
	}
	return contractx.ToolResult{CallID: call.ID, Content: out}
}

// Specs returns the model-facing catalog: read-only operations in
// registration order. Mutating operations stay reachable only through
// confirmed draft items.
func (r *Registry) Specs() []contractx.ToolSpec {
	specs := make([]contractx.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		if op := r.ops[name]; !op.Mutating {
			specs = append(specs, op.Spec)
		}
	}
	return specs
}

// Vocabulary lists every registered tool name, for the response sanitizer.
func (r *Registry) Vocabulary() []string {
	return append([]string(nil), r.order...)
}

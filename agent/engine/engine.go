// Package engine drives the tool-use negotiation with the generative
// service and gates every write behind the draft propose/confirm protocol.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
	historyx "github.com/smate-ai/smate-agent/agent/history"
	promptx "github.com/smate-ai/smate-agent/agent/prompt"
)

// currentTurnTag marks the newest user message so the service extracts data
// only from it and treats the window as context. Pure string prefix; never
// stored.
const currentTurnTag = "[mensaje actual]"

type Config struct {
	TenantID      string        `envconfig:"TENANT_ID" split_words:"true" default:"default"`
	MaxRounds     int           `envconfig:"MAX_ROUNDS" split_words:"true" default:"5"`
	HistoryWindow int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"20"`
	ReplyInterval time.Duration `envconfig:"REPLY_INTERVAL" split_words:"true" default:"3s"`
}

type Engine struct {
	convs  contractx.ConversationStore
	msgs   contractx.MessageStore
	drafts contractx.DraftStore
	chat   contractx.ChatService
	tools  contractx.Dispatcher

	prompts   promptx.PromptSet
	sanitizer *Sanitizer
	limiter   *RateLimiter
	locks     *convLocks

	cfg Config
	now func() time.Time
}

func New(
	convs contractx.ConversationStore,
	msgs contractx.MessageStore,
	drafts contractx.DraftStore,
	chat contractx.ChatService,
	tools contractx.Dispatcher,
	prompts promptx.PromptSet,
	cfg Config,
) (*Engine, error) {
	if convs == nil || msgs == nil || drafts == nil {
		return nil, errors.New("conversation, message, and draft stores are required")
	}
	if chat == nil {
		return nil, errors.New("chat service is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 5
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		cfg.TenantID = "default"
	}

	// Mutating tools are absent from Specs, so prefer the full name list
	// when the dispatcher exposes one.
	var vocab []string
	if v, ok := tools.(interface{ Vocabulary() []string }); ok {
		vocab = v.Vocabulary()
	} else {
		for _, spec := range tools.Specs() {
			vocab = append(vocab, spec.Name)
		}
	}
	vocab = append(vocab, ToolProposeActions)

	return &Engine{
		convs:     convs,
		msgs:      msgs,
		drafts:    drafts,
		chat:      chat,
		tools:     tools,
		prompts:   prompts,
		sanitizer: NewSanitizer(vocab),
		limiter:   NewRateLimiter(cfg.ReplyInterval),
		locks:     newConvLocks(),
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// HandleMessage processes one inbound user message end to end and returns
// the outbound reply text.
func (e *Engine) HandleMessage(ctx context.Context, correspondentID, text string) (string, error) {
	correspondentID = strings.TrimSpace(correspondentID)
	if correspondentID == "" {
		return "", fmt.Errorf("%w: correspondent id is empty", contractx.ErrValidation)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}

	if !e.limiter.Allow(correspondentID) {
		return "", contractx.ErrRateLimited
	}

	conv, err := e.convs.GetOrCreate(ctx, correspondentID)
	if err != nil {
		return "", err
	}

	release := e.locks.Acquire(conv.ID)
	defer release()

	// Reload under the lock; a queued delivery may have flipped the state.
	if fresh, err := e.convs.Get(ctx, conv.ID); err == nil {
		conv = fresh
	}

	window, err := historyx.Window(ctx, e.msgs, conv.ID, e.cfg.HistoryWindow)
	if err != nil {
		return "", err
	}

	if err := e.msgs.Append(ctx, &contractx.Message{
		ConversationID: conv.ID,
		Role:           contractx.RoleUser,
		Content:        text,
	}); err != nil {
		return "", err
	}

	reply, err := e.step(ctx, conv, window, text)
	if err != nil {
		return "", err
	}

	reply = e.sanitizer.Clean(reply)
	if reply == "" {
		reply = "¿En qué te puedo ayudar?"
	}

	if err := e.msgs.Append(ctx, &contractx.Message{
		ConversationID: conv.ID,
		Role:           contractx.RoleAssistant,
		Content:        reply,
	}); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("persist assistant reply failed")
	}

	return reply, nil
}

// step is the conversation-level state transition: while awaiting
// confirmation input goes through the confirmation cascade, otherwise
// through the tool-use loop. The single iteration bound covers the
// self-heal path (awaiting state without a pending draft), which re-enters
// as a fresh turn exactly once.
func (e *Engine) step(ctx context.Context, conv *contractx.Conversation, window []contractx.Turn, text string) (string, error) {
	for hop := 0; hop < 2; hop++ {
		if conv.State != contractx.ConvAwaitingConfirmation {
			return e.negotiate(ctx, conv, window, text)
		}

		reply, reenter, err := e.confirm(ctx, conv, text)
		if err != nil {
			return "", err
		}
		if !reenter {
			return reply, nil
		}
		conv.State = contractx.ConvNormal
	}
	return "", fmt.Errorf("%w: step did not terminate", contractx.ErrStateConflict)
}

func (e *Engine) toolContext(conv *contractx.Conversation) contractx.ToolContext {
	return contractx.ToolContext{
		TenantID:        e.cfg.TenantID,
		ConversationID:  conv.ID,
		CorrespondentID: conv.CorrespondentID,
	}
}

// Package llm adapts the generative reasoning service (any OpenAI-compatible
// chat completion endpoint, OpenRouter by default) to the orchestration
// contract.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type Service struct {
	client openaisdk.Client
	cfg    Config
}

var _ contractx.ChatService = (*Service)(nil)

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	return &Service{client: openaisdk.NewClient(opts...), cfg: cfg}, nil
}

func (s *Service) NewExchange(system string, history []contractx.Turn, userMessage string) contractx.Exchange {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, openaisdk.SystemMessage(system))
	}
	for _, turn := range history {
		switch turn.Role {
		case contractx.RoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(turn.Content))
		default:
			msgs = append(msgs, openaisdk.UserMessage(turn.Content))
		}
	}
	msgs = append(msgs, openaisdk.UserMessage(userMessage))

	return &exchange{svc: s, msgs: msgs}
}

func (s *Service) Decide(ctx context.Context, system, input string) (string, error) {
	params := s.baseParams()
	params.Messages = []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(system),
		openaisdk.UserMessage(input),
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: decide: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: decide returned no choices", contractx.ErrModelInvoke)
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (s *Service) baseParams() openaisdk.ChatCompletionNewParams {
	return openaisdk.ChatCompletionNewParams{
		Model:               shared.ChatModel(s.cfg.Model),
		MaxCompletionTokens: openaisdk.Int(int64(s.cfg.MaxCompletionToken)),
		Temperature:         openaisdk.Float(s.cfg.Temperature),
	}
}

// exchange accumulates the wire transcript for one negotiation. Requested
// tool calls are echoed back verbatim as the assistant turn and their
// results follow as tool messages, which keeps the role sequence valid for
// the service.
type exchange struct {
	svc  *Service
	msgs []openaisdk.ChatCompletionMessageParamUnion
}

func (e *exchange) Next(ctx context.Context, tools []contractx.ToolSpec) (contractx.Reply, error) {
	params := e.svc.baseParams()
	params.Messages = e.msgs
	params.Tools = toolParams(tools)

	completion, err := e.svc.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Reply{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.Reply{}, fmt.Errorf("%w: no choices returned", contractx.ErrModelInvoke)
	}

	msg := completion.Choices[0].Message
	e.msgs = append(e.msgs, msg.ToParam())

	if len(msg.ToolCalls) == 0 {
		return contractx.Reply{Text: strings.TrimSpace(msg.Content)}, nil
	}

	calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		calls = append(calls, contractx.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return contractx.Reply{ToolCalls: calls}, nil
}

func (e *exchange) PushResults(results []contractx.ToolResult) {
	for _, res := range results {
		content := res.Content
		if res.IsError {
			content = "ERROR: " + content
		}
		e.msgs = append(e.msgs, openaisdk.ToolMessage(content, res.CallID))
	}
}

func (e *exchange) Final(ctx context.Context) (string, error) {
	params := e.svc.baseParams()
	params.Messages = e.msgs

	completion, err := e.svc.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: final: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: final returned no choices", contractx.ErrModelInvoke)
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func toolParams(tools []contractx.ToolSpec) []openaisdk.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	params := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params = append(params, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openaisdk.String(t.Description),
			Parameters:  shared.FunctionParameters(t.InputSchema),
		}))
	}
	return params
}

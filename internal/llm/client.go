package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/estevaoantuness/agentefinal/internal/convo"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON, decoded by the caller
}

// Reply is the model's answer to one completion request.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the completion surface the orchestrator talks to. Tests
// substitute a fake.
type Client interface {
	Complete(ctx context.Context, turns []convo.Turn, tools []openai.ChatCompletionToolParam) (*Reply, error)
}

// Config configures the OpenAI-backed client.
type Config struct {
	APIKey     string
	BaseURL    string // optional, for proxies
	Model      string
	MaxTokens  int
	MaxRetries int
}

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type openAIClient struct {
	completions chatCompletions
	model       string
	maxTokens   int
	maxRetries  int
}

const defaultMaxRetries = 3

// New builds the production client.
func New(cfg Config) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm: api key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm: model required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &openAIClient{
		completions: &client.Chat.Completions,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		maxRetries:  retries,
	}, nil
}

func (c *openAIClient) Complete(ctx context.Context, turns []convo.Turn, tools []openai.ChatCompletionToolParam) (*Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
		Messages:            convertTurns(turns),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	var completion *openai.ChatCompletion
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		var err error
		completion, err = c.completions.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	return convertCompletion(completion), nil
}

func convertTurns(turns []convo.Turn) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, t := range turns {
		switch t.Role {
		case convo.RoleSystem:
			if strings.TrimSpace(t.Content) != "" {
				out = append(out, openai.SystemMessage(t.Content))
			}
		case convo.RoleAssistant:
			out = append(out, buildAssistantMessage(t))
		case convo.RoleTool:
			out = append(out, openai.ToolMessage(t.Content, t.ToolCallID))
		default:
			content := t.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			out = append(out, openai.UserMessage(content))
		}
	}
	if len(out) == 0 {
		out = append(out, openai.UserMessage("."))
	}
	return out
}

func buildAssistantMessage(t convo.Turn) openai.ChatCompletionMessageParamUnion {
	param := openai.ChatCompletionAssistantMessageParam{}

	if strings.TrimSpace(t.Content) != "" {
		param.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(t.Content),
		}
	}
	if t.ToolCallID != "" && t.ToolName != "" {
		args := t.ToolArgs
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		param.ToolCalls = []openai.ChatCompletionMessageToolCallParam{{
			ID: t.ToolCallID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      t.ToolName,
				Arguments: args,
			},
		}}
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &param}
}

func convertCompletion(completion *openai.ChatCompletion) *Reply {
	if completion == nil || len(completion.Choices) == 0 {
		return &Reply{}
	}
	msg := completion.Choices[0].Message

	reply := &Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply
}

func (c *openAIClient) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	attempts := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(err) || attempts >= c.maxRetries {
			return err
		}
		attempts++
		backoff := time.Duration(attempts*attempts) * 200 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return true
		case http.StatusUnauthorized, http.StatusBadRequest, http.StatusNotFound:
			return false
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

const defaultAnthropicModel = string(anthropic.ModelClaude3_7SonnetLatest)

type anthropicHandle struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     RetryConfig
}

func newAnthropicHandle(config Config) *anthropicHandle {
	model := config.AnthropicModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicHandle{
		client:    anthropic.NewClient(option.WithAPIKey(config.AnthropicAPIKey)),
		model:     model,
		maxTokens: config.MaxTokens,
		retry:     config.Retry,
	}
}

func (h *anthropicHandle) Provider() string { return "anthropic" }
func (h *anthropicHandle) Model() string    { return h.model }

func (h *anthropicHandle) StreamCompletion(ctx context.Context, req Request, handler StreamHandler) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Turns))
	for _, turn := range req.Turns {
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	stream := h.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     anthropic.Model(h.model),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: messages,
	})
	defer stream.Close()

	var accumulated strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				accumulated.WriteString(delta.Text)
				handler.HandleToken(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return accumulated.String(), errors.Wrap(err, "anthropic stream failed")
	}

	handler.HandleDone()
	return accumulated.String(), nil
}

func (h *anthropicHandle) GenerateObject(ctx context.Context, system, prompt string, out any) error {
	// Anthropic has no native JSON response mode; the system instruction
	// mandates a bare JSON object and the response is unfenced before
	// unmarshalling.
	system = system + "\n\nRespond with a single valid JSON object and nothing else. No prose, no markdown fences."

	var content string
	err := retryTransient(ctx, h.retry, "anthropic", func() error {
		message, err := h.client.Messages.New(ctx, anthropic.MessageNewParams{
			MaxTokens: int64(h.maxTokens),
			Model:     anthropic.Model(h.model),
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return err
		}

		content = ""
		for _, block := range message.Content {
			if text, ok := block.AsAny().(anthropic.TextBlock); ok {
				content += text.Text
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "anthropic structured request failed")
	}

	if err := json.Unmarshal([]byte(unfenceJSON(content)), out); err != nil {
		return errors.Wrap(err, "malformed structured output")
	}
	return nil
}

// unfenceJSON strips a markdown code fence when the model wraps its JSON in
// one anyway.
func unfenceJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// retryTransient wraps one-shot provider calls with bounded exponential
// backoff. Context cancellation stops the retry loop immediately.
func retryTransient(ctx context.Context, config RetryConfig, provider string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(uint(config.Attempts)),
		retry.Delay(msDuration(config.InitialDelay)),
		retry.MaxDelay(msDuration(config.MaxDelay)),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("provider", provider).Warn("retrying structured output call")
		}),
	)
}

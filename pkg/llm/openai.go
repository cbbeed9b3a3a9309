package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const defaultOpenAIModel = openai.GPT4o

type openaiHandle struct {
	client    *openai.Client
	model     string
	maxTokens int
	retry     RetryConfig
}

func newOpenAIHandle(config Config) *openaiHandle {
	model := config.OpenAIModel
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openaiHandle{
		client:    openai.NewClient(config.OpenAIAPIKey),
		model:     model,
		maxTokens: config.MaxTokens,
		retry:     config.Retry,
	}
}

func (h *openaiHandle) Provider() string { return "openai" }
func (h *openaiHandle) Model() string    { return h.model }

func toChatMessages(system string, turns []skill.GenerationTurn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}

func (h *openaiHandle) StreamCompletion(ctx context.Context, req Request, handler StreamHandler) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}

	stream, err := h.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:               h.model,
		Messages:            toChatMessages(req.System, req.Turns),
		MaxCompletionTokens: maxTokens,
		Stream:              true,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to open openai stream")
	}
	defer stream.Close()

	var accumulated strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return accumulated.String(), errors.Wrap(err, "openai stream failed")
		}

		for _, choice := range response.Choices {
			if choice.Delta.Content != "" {
				accumulated.WriteString(choice.Delta.Content)
				handler.HandleToken(choice.Delta.Content)
			}
		}
	}

	handler.HandleDone()
	return accumulated.String(), nil
}

func (h *openaiHandle) GenerateObject(ctx context.Context, system, prompt string, out any) error {
	schema, err := reflectSchema(out)
	if err != nil {
		return err
	}

	var content string
	err = retryTransient(ctx, h.retry, "openai", func() error {
		response, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: h.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   "response",
					Schema: schema,
				},
			},
		})
		if err != nil {
			return err
		}
		if len(response.Choices) == 0 {
			return errors.New("openai returned no choices")
		}
		content = response.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "openai structured request failed")
	}

	if err := json.Unmarshal([]byte(unfenceJSON(content)), out); err != nil {
		return errors.Wrap(err, "malformed structured output")
	}
	return nil
}

// reflectSchema derives a JSON schema from the output type so the provider
// enforces the response shape server-side.
func reflectSchema(out any) (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(out)
	if schema == nil {
		return nil, errors.New("failed to reflect response schema")
	}
	return schema, nil
}

package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const defaultGoogleModel = "gemini-2.0-flash"

type googleHandle struct {
	apiKey    string
	model     string
	maxTokens int
	retry     RetryConfig
}

func newGoogleHandle(config Config) *googleHandle {
	model := config.GoogleModel
	if model == "" {
		model = defaultGoogleModel
	}
	return &googleHandle{
		apiKey:    config.GoogleAPIKey,
		model:     model,
		maxTokens: config.MaxTokens,
		retry:     config.Retry,
	}
}

func (h *googleHandle) Provider() string { return "google" }
func (h *googleHandle) Model() string    { return h.model }

func (h *googleHandle) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  h.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create genai client")
	}
	return client, nil
}

func toContents(turns []skill.GenerationTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

func (h *googleHandle) StreamCompletion(ctx context.Context, req Request, handler StreamHandler) (string, error) {
	client, err := h.newClient(ctx)
	if err != nil {
		return "", err
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(maxTokens),
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}

	var accumulated strings.Builder
	for chunk, err := range client.Models.GenerateContentStream(ctx, h.model, toContents(req.Turns), config) {
		if err != nil {
			return accumulated.String(), errors.Wrap(err, "google stream failed")
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				accumulated.WriteString(part.Text)
				handler.HandleToken(part.Text)
			}
		}
	}

	handler.HandleDone()
	return accumulated.String(), nil
}

func (h *googleHandle) GenerateObject(ctx context.Context, system, prompt string, out any) error {
	client, err := h.newClient(ctx)
	if err != nil {
		return err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	var content string
	err = retryTransient(ctx, h.retry, "google", func() error {
		response, err := client.Models.GenerateContent(ctx, h.model,
			[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
		if err != nil {
			return err
		}
		if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
			len(response.Candidates[0].Content.Parts) == 0 {
			return errors.New("google returned no candidates")
		}
		content = response.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "google structured request failed")
	}

	if err := json.Unmarshal([]byte(unfenceJSON(content)), out); err != nil {
		return errors.Wrap(err, "malformed structured output")
	}
	return nil
}

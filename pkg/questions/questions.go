// Package questions implements the clarifying-question generator: given a
// capability description it asks the structured-output backend for 3-5
// multiple-choice questions plus any configuration fields the eventual skill
// needs filled in. Responses outside the contract bounds are rejected with
// ErrContractViolation so the caller can fall back to the no-clarification
// path.
package questions

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/sysprompt"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const (
	// MinQuestions and MaxQuestions bound the accepted question count.
	MinQuestions = 3
	MaxQuestions = 5
	// MaxOptions bounds options per question; MinOptions is the floor.
	MinOptions = 2
	MaxOptions = 5
	// MaxConfigFields caps extracted configuration fields.
	MaxConfigFields = 5
)

// ErrContractViolation marks a structurally invalid question response. It is
// recovered locally: the caller skips clarification and generates straight
// from the raw description.
var ErrContractViolation = errors.New("question response violates contract")

// Plan is the accepted output of one question-generation request.
type Plan struct {
	Questions    []skill.ClarifyingQuestion `json:"questions"`
	ConfigFields []skill.ConfigField        `json:"configFields"`
}

// rawPlan is the wire shape requested from the structured-output backend.
// jsonschema tags drive server-side schema enforcement where the provider
// supports it.
type rawPlan struct {
	Questions []struct {
		ID               string   `json:"id"`
		Question         string   `json:"question" jsonschema:"minLength=1"`
		Options          []string `json:"options"`
		RecommendedIndex int      `json:"recommendedIndex"`
	} `json:"questions"`
	ConfigFields []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Placeholder string `json:"placeholder"`
		Type        string `json:"type" jsonschema:"enum=text,enum=url,enum=password,enum=number,enum=email"`
		Required    bool   `json:"required"`
		Description string `json:"description"`
	} `json:"configFields"`
}

// Generator issues question-generation requests against one structured-output
// model handle. It is stateless; the same generator may serve many requests.
type Generator struct {
	handle llm.ModelHandle
}

// NewGenerator creates a Generator bound to the given handle.
func NewGenerator(handle llm.ModelHandle) *Generator {
	return &Generator{handle: handle}
}

const userPromptTemplate = `Capability description:
%s

Generate between %d and %d clarifying questions and any required configuration fields.`

// Generate produces a validated question plan for the request. Provider
// failures and malformed responses surface as errors; responses that parse
// but break the bounds return ErrContractViolation.
func (g *Generator) Generate(ctx context.Context, req skill.CapabilityRequest) (*Plan, error) {
	req = req.Normalize()
	if strings.TrimSpace(req.Description) == "" {
		return nil, errors.New("description must not be empty")
	}

	ctx, span := telemetry.StartSpan(ctx, "questions.Generate")
	defer span.End()

	system := sysprompt.QuestionPrompt(req.Complexity, req.TargetAgent)
	prompt := fmt.Sprintf(userPromptTemplate, req.Description, MinQuestions, MaxQuestions)

	var raw rawPlan
	if err := g.handle.GenerateObject(ctx, system, prompt, &raw); err != nil {
		return nil, errors.Wrap(err, "question generation failed")
	}

	plan, err := normalize(raw)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("questions", len(raw.Questions)).Warn("rejecting question response")
		return nil, err
	}

	return plan, nil
}

var nonSnake = regexp.MustCompile(`[^a-z0-9_]+`)

// snakeID normalizes an identifier to snake_case.
func snakeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	return strings.Trim(nonSnake.ReplaceAllString(id, ""), "_")
}

// normalize validates the raw response against the contract bounds and
// produces the accepted plan.
func normalize(raw rawPlan) (*Plan, error) {
	if len(raw.Questions) < MinQuestions || len(raw.Questions) > MaxQuestions {
		return nil, errors.Wrapf(ErrContractViolation, "expected %d-%d questions, got %d", MinQuestions, MaxQuestions, len(raw.Questions))
	}

	plan := &Plan{}
	for i, q := range raw.Questions {
		if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
			return nil, errors.Wrapf(ErrContractViolation, "question %d has %d options", i+1, len(q.Options))
		}
		seen := make(map[string]bool, len(q.Options))
		for _, option := range q.Options {
			if seen[option] {
				return nil, errors.Wrapf(ErrContractViolation, "question %d has duplicate option %q", i+1, option)
			}
			seen[option] = true
		}
		if q.RecommendedIndex < 0 || q.RecommendedIndex >= len(q.Options) {
			return nil, errors.Wrapf(ErrContractViolation, "question %d recommendedIndex %d out of range", i+1, q.RecommendedIndex)
		}

		id := snakeID(q.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		plan.Questions = append(plan.Questions, skill.ClarifyingQuestion{
			ID:               id,
			Question:         q.Question,
			Options:          q.Options,
			RecommendedIndex: q.RecommendedIndex,
		})
	}

	// Config fields are best-effort extras: excess entries are dropped and
	// duplicate ids keep the first occurrence.
	seenFields := make(map[string]bool)
	for _, f := range raw.ConfigFields {
		if len(plan.ConfigFields) == MaxConfigFields {
			break
		}
		id := snakeID(f.ID)
		if id == "" || seenFields[id] {
			continue
		}
		seenFields[id] = true

		fieldType := skill.ConfigFieldType(f.Type)
		switch fieldType {
		case skill.FieldText, skill.FieldURL, skill.FieldPassword, skill.FieldNumber, skill.FieldEmail:
		default:
			fieldType = skill.FieldText
		}

		plan.ConfigFields = append(plan.ConfigFields, skill.ConfigField{
			ID:          id,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Type:        fieldType,
			Required:    f.Required,
			Description: f.Description,
		})
	}

	return plan, nil
}

// Package skill defines the core domain types shared across the skillforge
// pipeline: capability requests, clarifying questions, configuration fields,
// generation turns, skill files and persisted sessions.
package skill

import (
	"strings"
	"time"
)

// Complexity controls how defensive the generated skill should be.
type Complexity string

const (
	// ComplexitySimple biases generation toward the smallest workable skill.
	ComplexitySimple Complexity = "simple"
	// ComplexityFull biases generation toward a robust, production-shaped skill.
	ComplexityFull Complexity = "full"
)

// Valid reports whether c is one of the known complexity values.
func (c Complexity) Valid() bool {
	return c == ComplexitySimple || c == ComplexityFull
}

// DefaultTargetAgent is used when a capability request does not name an agent.
const DefaultTargetAgent = "claude-code"

// KnownTargetAgents is the set of agent identifiers accepted by the API surface.
var KnownTargetAgents = map[string]bool{
	"claude-code":  true,
	"cursor":       true,
	"openai-codex": true,
	"v0":           true,
	"bolt":         true,
	"lovable":      true,
}

// CapabilityRequest is the immutable input to question generation.
type CapabilityRequest struct {
	Description string     `json:"description"`
	Complexity  Complexity `json:"complexity"`
	TargetAgent string     `json:"targetAgent"`
}

// Normalize fills the defaults for optional fields.
func (r CapabilityRequest) Normalize() CapabilityRequest {
	if r.Complexity == "" {
		r.Complexity = ComplexitySimple
	}
	if r.TargetAgent == "" {
		r.TargetAgent = DefaultTargetAgent
	}
	return r
}

// ClarifyingQuestion is a multiple-choice question with a recommended default.
type ClarifyingQuestion struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	RecommendedIndex int      `json:"recommendedIndex"`
}

// ConfigFieldType enumerates the supported typed configuration inputs.
type ConfigFieldType string

const (
	FieldText     ConfigFieldType = "text"
	FieldURL      ConfigFieldType = "url"
	FieldPassword ConfigFieldType = "password"
	FieldNumber   ConfigFieldType = "number"
	FieldEmail    ConfigFieldType = "email"
)

// ConfigField is a typed key/value prompt the generated skill needs filled in,
// e.g. a webhook URL or an API key. Fields are only emitted when the
// capability description references a concrete external value that cannot be
// safely defaulted.
type ConfigField struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Placeholder string          `json:"placeholder"`
	Type        ConfigFieldType `json:"type"`
	Required    bool            `json:"required"`
	Description string          `json:"description,omitempty"`
}

// AnswerKind tags the two ways a clarifying question can be answered.
type AnswerKind string

const (
	// AnswerChoice means the user picked one of the offered options.
	AnswerChoice AnswerKind = "choice"
	// AnswerFreeText means the user used the "other" escape hatch.
	AnswerFreeText AnswerKind = "free_text"
)

// StructuredAnswer pairs a question's stable id with the user's answer.
// Both the choice and free-text variants normalize to Answer, which is the
// only representation the generation engine consumes.
type StructuredAnswer struct {
	QuestionID string     `json:"questionId"`
	Answer     string     `json:"answer"`
	Kind       AnswerKind `json:"kind,omitempty"`
}

// ChoiceAnswer builds a StructuredAnswer from a selected option.
func ChoiceAnswer(questionID, option string) StructuredAnswer {
	return StructuredAnswer{QuestionID: questionID, Answer: option, Kind: AnswerChoice}
}

// FreeTextAnswer builds a StructuredAnswer from "other" free text.
func FreeTextAnswer(questionID, text string) StructuredAnswer {
	return StructuredAnswer{QuestionID: questionID, Answer: text, Kind: AnswerFreeText}
}

// GenerationTurn is one exchange in the conversation. Turns are append-only
// within a session.
type GenerationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SkillFile is a single file of a generated skill package. Path is relative
// and may include subdirectories.
type SkillFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SkillFileName is the conventionally required instruction file of a package.
const SkillFileName = "SKILL.md"

// ParsedResponse is the result of splitting a raw completion into its
// conversational message and the file-block-encoded package. It is derived,
// never persisted.
type ParsedResponse struct {
	Message string      `json:"message"`
	Files   []SkillFile `json:"files"`
}

// File returns the file at path, or nil when absent.
func (r ParsedResponse) File(path string) *SkillFile {
	for i := range r.Files {
		if r.Files[i].Path == path {
			return &r.Files[i]
		}
	}
	return nil
}

// PendingSession is the durable client-side draft of a generation in
// progress. Only one pending session exists at a time per device.
type PendingSession struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Answers     []StructuredAnswer `json:"questionAnswers,omitempty"`
	ConfigVals  map[string]string  `json:"configValues,omitempty"`
	TargetAgent string             `json:"targetAgent,omitempty"`
	Spec        string             `json:"spec"`
	IsComplete  bool               `json:"isComplete"`
	CreatedAt   time.Time          `json:"createdAt"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

// Session is the durable record of a capability request and its artifact.
type Session struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Spec        string           `json:"spec,omitempty"`
	Messages    []GenerationTurn `json:"messages,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TitleMaxLen is the truncation threshold for derived session titles.
const TitleMaxLen = 50

// DeriveTitle collapses whitespace in description and truncates it to
// TitleMaxLen runes, appending an ellipsis when truncated.
func DeriveTitle(description string) string {
	collapsed := strings.Join(strings.Fields(description), " ")
	runes := []rune(collapsed)
	if len(runes) <= TitleMaxLen {
		return collapsed
	}
	return strings.TrimSpace(string(runes[:TitleMaxLen])) + "..."
}

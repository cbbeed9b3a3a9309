package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

var testQuestions = []skill.ClarifyingQuestion{
	{
		ID:               "check_frequency",
		Question:         "How often should it check?",
		Options:          []string{"Hourly", "Daily", "Weekly"},
		RecommendedIndex: 1,
	},
	{
		ID:               "notify_channel",
		Question:         "Where should alerts go?",
		Options:          []string{"Email", "Slack"},
		RecommendedIndex: 0,
	},
}

var testFields = []skill.ConfigField{
	{ID: "website_url", Label: "Website URL", Type: skill.FieldURL, Required: true},
	{ID: "note", Label: "Note", Type: skill.FieldText},
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step(t *testing.T, m tea.Model, msgs ...tea.Msg) FormModel {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m.(FormModel)
}

func TestRecommendedOptionPreselected(t *testing.T) {
	m := NewFormModel(testQuestions, nil)
	assert.Equal(t, 1, m.cursor) // "Daily"

	view := m.View()
	assert.Contains(t, view, "How often should it check?")
	assert.Contains(t, view, "Daily (recommended)")
}

func TestAnswerWithRecommendedDefaults(t *testing.T) {
	m := NewFormModel(testQuestions, nil)

	final := step(t, m, key(tea.KeyEnter), key(tea.KeyEnter))
	require.True(t, final.Done())
	assert.False(t, final.Aborted())

	answers := final.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, skill.ChoiceAnswer("check_frequency", "Daily"), answers[0])
	assert.Equal(t, skill.ChoiceAnswer("notify_channel", "Email"), answers[1])
	assert.Empty(t, final.ConfigValues())
}

func TestNavigateAndSelect(t *testing.T) {
	m := NewFormModel(testQuestions, nil)

	final := step(t, m,
		key(tea.KeyUp), key(tea.KeyEnter), // "Hourly"
		key(tea.KeyDown), key(tea.KeyEnter), // "Slack"
	)
	require.True(t, final.Done())
	answers := final.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, "Hourly", answers[0].Answer)
	assert.Equal(t, "Slack", answers[1].Answer)
}

func TestOtherFreeTextAnswer(t *testing.T) {
	m := NewFormModel(testQuestions[:1], nil)

	// Move past the options onto "Other".
	final := step(t, m,
		key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter),
		runes("Every 5 minutes"), key(tea.KeyEnter),
	)
	require.True(t, final.Done())
	answers := final.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, skill.FreeTextAnswer("check_frequency", "Every 5 minutes"), answers[0])
}

func TestOtherRejectsEmptyAnswer(t *testing.T) {
	m := NewFormModel(testQuestions[:1], nil)

	mid := step(t, m,
		key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter),
		key(tea.KeyEnter),
	)
	assert.False(t, mid.Done())
	assert.Contains(t, mid.View(), "answer cannot be empty")
}

func TestConfigPhaseValidation(t *testing.T) {
	m := NewFormModel(nil, testFields)
	assert.Equal(t, phaseConfig, m.phase)
	assert.Contains(t, m.View(), "Website URL *")

	// An invalid URL blocks progression with an inline error.
	mid := step(t, m, runes("not a url"), key(tea.KeyEnter))
	assert.Equal(t, phaseConfig, mid.phase)
	assert.Contains(t, mid.View(), "website_url")

	// A valid URL advances to the optional field, which may be skipped.
	final := step(t, NewFormModel(nil, testFields),
		runes("https://example.com"), key(tea.KeyEnter),
		key(tea.KeyEnter),
	)
	require.True(t, final.Done())
	assert.Equal(t, map[string]string{"website_url": "https://example.com"}, final.ConfigValues())
}

func TestAllOptionalConfigSkipped(t *testing.T) {
	fields := []skill.ConfigField{{ID: "note", Label: "Note", Type: skill.FieldText}}
	final := step(t, NewFormModel(nil, fields), key(tea.KeyEnter))
	require.True(t, final.Done())
	assert.Empty(t, final.ConfigValues())
}

func TestQuestionsThenConfig(t *testing.T) {
	m := NewFormModel(testQuestions[:1], testFields[:1])

	final := step(t, m,
		key(tea.KeyEnter), // answer with recommended
		runes("https://example.com"), key(tea.KeyEnter),
	)
	require.True(t, final.Done())
	assert.Len(t, final.Answers(), 1)
	assert.Equal(t, "https://example.com", final.ConfigValues()["website_url"])
}

func TestCtrlCAborts(t *testing.T) {
	final := step(t, NewFormModel(testQuestions, testFields), key(tea.KeyCtrlC))
	assert.True(t, final.Aborted())
}

func TestEmptyPlanCompletesImmediately(t *testing.T) {
	m := NewFormModel(nil, nil)
	assert.True(t, m.Done())
	assert.NotNil(t, m.ConfigValues())
}

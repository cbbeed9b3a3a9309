// Package tui implements the interactive clarification flow: one
// multiple-choice question at a time with the recommended option
// preselected, an "Other" free-text escape hatch, and a typed
// configuration form with inline validation.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jingkaihe/skillforge/pkg/configform"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// otherOption is the free-text escape hatch appended to every question.
const otherOption = "Other (type your own)"

type phase int

const (
	phaseQuestions phase = iota
	phaseConfig
	phaseDone
)

// FormModel walks the user through clarifying questions and config fields.
type FormModel struct {
	questions []skill.ClarifyingQuestion
	form      *configform.Form

	phase    phase
	qIndex   int
	cursor   int
	otherOn  bool
	input    textinput.Model
	fIndex   int
	errMsg   string
	aborted  bool
	answers  []skill.StructuredAnswer
	values   map[string]string

	titleStyle    lipgloss.Style
	selectedStyle lipgloss.Style
	dimStyle      lipgloss.Style
	errorStyle    lipgloss.Style
	hintStyle     lipgloss.Style
}

// NewFormModel creates the form over a question plan.
func NewFormModel(questions []skill.ClarifyingQuestion, fields []skill.ConfigField) FormModel {
	input := textinput.New()
	input.CharLimit = 500
	input.Prompt = "❯ "

	m := FormModel{
		questions: questions,
		form:      configform.New(fields),
		input:     input,

		titleStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		hintStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	}

	if len(questions) == 0 {
		m.enterConfigPhase()
	} else {
		m.cursor = recommendedCursor(questions[0])
	}
	return m
}

// Run executes the form interactively and returns the final model.
func Run(questions []skill.ClarifyingQuestion, fields []skill.ConfigField) (FormModel, error) {
	m := NewFormModel(questions, fields)
	if m.Done() {
		return m, nil
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return m, err
	}
	return final.(FormModel), nil
}

// recommendedCursor preselects the question's recommended option.
func recommendedCursor(q skill.ClarifyingQuestion) int {
	if q.RecommendedIndex >= 0 && q.RecommendedIndex < len(q.Options) {
		return q.RecommendedIndex
	}
	return 0
}

// Answers returns the collected structured answers.
func (m FormModel) Answers() []skill.StructuredAnswer { return m.answers }

// ConfigValues returns the submitted configuration values. Nil until the
// form completes.
func (m FormModel) ConfigValues() map[string]string { return m.values }

// Aborted reports whether the user cancelled the flow.
func (m FormModel) Aborted() bool { return m.aborted }

// Done reports whether the flow finished.
func (m FormModel) Done() bool { return m.phase == phaseDone }

// Init implements tea.Model.
func (m FormModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m FormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case "ctrl+c":
		m.aborted = true
		m.phase = phaseDone
		return m, tea.Quit
	}

	switch m.phase {
	case phaseQuestions:
		return m.updateQuestion(keyMsg)
	case phaseConfig:
		return m.updateConfig(keyMsg)
	}
	return m, tea.Quit
}

func (m FormModel) updateQuestion(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	question := m.questions[m.qIndex]
	optionCount := len(question.Options) + 1 // +1 for "Other"

	if m.otherOn {
		switch msg.String() {
		case "esc":
			m.otherOn = false
			m.errMsg = ""
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				m.errMsg = "answer cannot be empty"
				return m, nil
			}
			m.answers = append(m.answers, skill.FreeTextAnswer(question.ID, text))
			return m.nextQuestion()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < optionCount-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor == len(question.Options) {
			m.otherOn = true
			m.errMsg = ""
			m.input.SetValue("")
			m.input.Placeholder = "Your answer"
			m.input.Focus()
			return m, textinput.Blink
		}
		m.answers = append(m.answers, skill.ChoiceAnswer(question.ID, question.Options[m.cursor]))
		return m.nextQuestion()
	}
	return m, nil
}

func (m FormModel) nextQuestion() (tea.Model, tea.Cmd) {
	m.otherOn = false
	m.errMsg = ""
	m.qIndex++
	if m.qIndex >= len(m.questions) {
		m.enterConfigPhase()
		if m.phase == phaseDone {
			return m, tea.Quit
		}
		return m, textinput.Blink
	}
	m.cursor = recommendedCursor(m.questions[m.qIndex])
	return m, nil
}

// enterConfigPhase switches to config collection, or finishes when there is
// nothing to collect.
func (m *FormModel) enterConfigPhase() {
	if m.form.Empty() {
		m.values = map[string]string{}
		m.phase = phaseDone
		return
	}
	m.phase = phaseConfig
	m.fIndex = 0
	m.prepareFieldInput()
}

func (m *FormModel) prepareFieldInput() {
	field := m.form.Fields()[m.fIndex]
	m.input.SetValue(m.form.Value(field.ID))
	m.input.Placeholder = field.Placeholder
	if field.Type == skill.FieldPassword {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
	m.input.Focus()
}

func (m FormModel) updateConfig(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := m.form.Fields()
	field := fields[m.fIndex]

	switch msg.String() {
	case "enter":
		if err := m.form.Set(field.ID, m.input.Value()); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.fIndex++
		if m.fIndex >= len(fields) {
			values, err := m.form.Submit()
			if err != nil {
				// Jump back to the first offending field.
				m.errMsg = err.Error()
				m.fIndex = 0
				m.prepareFieldInput()
				return m, nil
			}
			m.values = values
			m.phase = phaseDone
			return m, tea.Quit
		}
		m.prepareFieldInput()
		return m, nil
	case "esc":
		if m.fIndex > 0 {
			m.fIndex--
			m.errMsg = ""
			m.prepareFieldInput()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m FormModel) View() string {
	switch m.phase {
	case phaseQuestions:
		return m.viewQuestion()
	case phaseConfig:
		return m.viewConfig()
	}
	return ""
}

func (m FormModel) viewQuestion() string {
	question := m.questions[m.qIndex]

	var b strings.Builder
	b.WriteString(m.hintStyle.Render(fmt.Sprintf("Question %d of %d", m.qIndex+1, len(m.questions))))
	b.WriteString("\n")
	b.WriteString(m.titleStyle.Render(question.Question))
	b.WriteString("\n\n")

	if m.otherOn {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.errMsg != "" {
			b.WriteString(m.errorStyle.Render(m.errMsg))
			b.WriteString("\n")
		}
		b.WriteString(m.hintStyle.Render("enter to confirm · esc to go back"))
		return b.String()
	}

	for i, option := range question.Options {
		label := option
		if i == question.RecommendedIndex {
			label += " (recommended)"
		}
		b.WriteString(m.renderOption(label, i == m.cursor))
	}
	b.WriteString(m.renderOption(otherOption, m.cursor == len(question.Options)))

	b.WriteString("\n")
	b.WriteString(m.hintStyle.Render("↑/↓ to move · enter to select"))
	return b.String()
}

func (m FormModel) renderOption(label string, selected bool) string {
	if selected {
		return m.selectedStyle.Render("❯ "+label) + "\n"
	}
	return m.dimStyle.Render("  "+label) + "\n"
}

func (m FormModel) viewConfig() string {
	fields := m.form.Fields()
	field := fields[m.fIndex]

	var b strings.Builder
	b.WriteString(m.hintStyle.Render(fmt.Sprintf("Configuration %d of %d", m.fIndex+1, len(fields))))
	b.WriteString("\n")

	label := field.Label
	if label == "" {
		label = field.ID
	}
	if field.Required {
		label += " *"
	}
	b.WriteString(m.titleStyle.Render(label))
	b.WriteString("\n")
	if field.Description != "" {
		b.WriteString(m.dimStyle.Render(field.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(m.errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}

	hint := "enter to confirm"
	if !field.Required {
		hint += " · leave empty to skip"
	}
	if m.fIndex > 0 {
		hint += " · esc to go back"
	}
	b.WriteString(m.hintStyle.Render(hint))
	return b.String()
}

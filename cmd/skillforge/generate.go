package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/generation"
	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/pending"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/questions"
	"github.com/jingkaihe/skillforge/pkg/sessions"
	"github.com/jingkaihe/skillforge/pkg/skillpkg"
	"github.com/jingkaihe/skillforge/pkg/tui"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

// GenerateConfig holds configuration for the generate command
type GenerateConfig struct {
	Complexity    string
	TargetAgent   string
	SkipQuestions bool
	Install       bool
	InstallDir    string
}

// NewGenerateConfig creates a GenerateConfig with default values
func NewGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		Complexity:  string(skill.ComplexitySimple),
		TargetAgent: skill.DefaultTargetAgent,
	}
}

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Generate a skill package from a capability description",
	Long: `Generate walks the full pipeline: clarifying questions, typed
configuration collection, streamed generation with refinement turns, and a
saved session. Use --skip-questions to go straight from the description.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getGenerateConfig(cmd)
		if err := runGenerate(cmd.Context(), config, strings.Join(args, " ")); err != nil {
			presenter.Error(err, "generation failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewGenerateConfig()
	generateCmd.Flags().String("complexity", defaults.Complexity, "Skill complexity (simple or full)")
	generateCmd.Flags().String("agent", defaults.TargetAgent, "Target agent (claude-code, cursor, openai-codex, v0, bolt, lovable)")
	generateCmd.Flags().Bool("skip-questions", false, "Skip clarifying questions and generate directly")
	generateCmd.Flags().Bool("install", false, "Install the generated skill after saving")
	generateCmd.Flags().String("install-dir", "", "Skill directory to install into (defaults to the agent's convention)")
}

func getGenerateConfig(cmd *cobra.Command) *GenerateConfig {
	config := NewGenerateConfig()
	config.Complexity, _ = cmd.Flags().GetString("complexity")
	config.TargetAgent, _ = cmd.Flags().GetString("agent")
	config.SkipQuestions, _ = cmd.Flags().GetBool("skip-questions")
	config.Install, _ = cmd.Flags().GetBool("install")
	config.InstallDir, _ = cmd.Flags().GetString("install-dir")
	return config
}

func runGenerate(ctx context.Context, config *GenerateConfig, description string) error {
	request := skill.CapabilityRequest{
		Description: description,
		Complexity:  skill.Complexity(config.Complexity),
		TargetAgent: config.TargetAgent,
	}.Normalize()
	if !request.Complexity.Valid() {
		return fmt.Errorf("invalid complexity %q", config.Complexity)
	}
	if !skill.KnownTargetAgents[request.TargetAgent] {
		return fmt.Errorf("unknown target agent %q", request.TargetAgent)
	}

	llmConfig, err := llm.GetConfigFromViper()
	if err != nil {
		return err
	}
	genHandle, err := llm.SelectModel(llmConfig, llm.CapabilityGeneration)
	if err != nil {
		return err
	}

	basePath, err := sessions.GetDefaultBasePath()
	if err != nil {
		return err
	}
	pendingPath, err := pending.DefaultPath()
	if err != nil {
		return err
	}
	buffer := pending.NewBuffer(pendingPath)

	store, err := sessions.GetStore(ctx, sessions.Config{
		BasePath: basePath,
		UserID:   sessions.CurrentIdentity(basePath),
	})
	if err != nil {
		return err
	}
	defer store.Close()
	service := sessions.NewService(store, sessions.WithPendingBuffer(buffer))

	draft, resumed := recoverDraft(ctx, service)
	var (
		answers    []skill.StructuredAnswer
		configVals map[string]string
	)
	if resumed {
		description = draft.Description
		request = skill.CapabilityRequest{
			Description: draft.Description,
			Complexity:  request.Complexity,
			TargetAgent: draft.TargetAgent,
		}.Normalize()
		answers = draft.Answers
		configVals = draft.ConfigVals
	} else if !config.SkipQuestions {
		var aborted bool
		answers, configVals, aborted, err = collectClarifications(ctx, llmConfig, request)
		if err != nil {
			return err
		}
		if aborted {
			presenter.Warning("cancelled")
			return nil
		}
	}

	engine := generation.NewEngine(genHandle,
		generation.WithPendingBuffer(buffer),
		generation.WithMaxTokens(llmConfig.MaxTokens),
		generation.WithObserver(streamPrinter()),
	)

	presenter.Section("Generating skill")
	parsed, err := engine.StartFromAnswers(ctx, request, answers, configVals)
	fmt.Println()
	if err != nil {
		return err
	}
	showFiles(parsed)

	session, err := service.SaveResult(ctx, description, engine.Artifact(), engine.Transcript())
	if err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Saved session %s (%s)", session.ID, session.Title))

	// Refinement loop: empty feedback finishes.
	for {
		feedback := presenter.Prompt("Refine the skill (empty to finish)")
		if strings.TrimSpace(feedback) == "" {
			break
		}

		parsed, err = engine.Refine(ctx, feedback)
		fmt.Println()
		if err != nil {
			presenter.Error(err, "refinement failed")
			continue
		}
		showFiles(parsed)

		if _, err := service.UpdateResult(ctx, session.ID, engine.Artifact(), engine.Transcript()); err != nil {
			presenter.Error(err, "failed to update session")
		}
	}

	if config.Install {
		return installFiles(parsed, request, config.InstallDir, description)
	}
	return nil
}

// recoverDraft handles a draft left behind by an interrupted run. A finished
// draft is offered for promotion straight to a session; an unfinished one can
// seed this run's description and answers. Either way the slot is cleared, so
// recovery happens at most once per draft.
func recoverDraft(ctx context.Context, service *sessions.Service) (skill.PendingSession, bool) {
	draft, ok := service.PendingDraft()
	if !ok {
		return skill.PendingSession{}, false
	}

	if draft.IsComplete {
		choice := presenter.Prompt(fmt.Sprintf("Found an unsaved generated skill for %q. Save it as a session?", draft.Description), "Y", "n")
		if strings.EqualFold(choice, "n") {
			service.DiscardPending(ctx)
			return skill.PendingSession{}, false
		}
		if session, promoted, err := service.PromotePending(ctx); err != nil {
			presenter.Error(err, "failed to save recovered draft")
		} else if promoted {
			presenter.Success(fmt.Sprintf("Saved session %s (%s)", session.ID, session.Title))
		}
		return skill.PendingSession{}, false
	}

	choice := presenter.Prompt(fmt.Sprintf("Found an interrupted draft for %q. Resume it?", draft.Description), "y", "N")
	if strings.EqualFold(choice, "y") {
		service.DiscardPending(ctx)
		return draft, true
	}
	service.DiscardPending(ctx)
	return skill.PendingSession{}, false
}

// collectClarifications runs question generation and the interactive form.
func collectClarifications(ctx context.Context, llmConfig llm.Config, request skill.CapabilityRequest) (answers []skill.StructuredAnswer, configVals map[string]string, aborted bool, err error) {
	questionHandle, err := llm.SelectModel(llmConfig, llm.CapabilityStructuredOutput)
	if err != nil {
		return nil, nil, false, err
	}

	presenter.Info("Preparing clarifying questions...")
	plan, err := questions.NewGenerator(questionHandle).Generate(ctx, request)
	if err != nil {
		return nil, nil, false, err
	}

	form, err := tui.Run(plan.Questions, plan.ConfigFields)
	if err != nil {
		return nil, nil, false, err
	}
	if form.Aborted() {
		return nil, nil, true, nil
	}
	return form.Answers(), form.ConfigValues(), false, nil
}

// streamPrinter writes the conversational part of the stream to stdout and
// goes quiet once the file blocks start.
func streamPrinter() func(string) {
	var seen string
	suppressed := false
	return func(token string) {
		if suppressed {
			return
		}
		printed := len(seen)
		seen += token
		if idx := strings.Index(seen, wire.Delimiter); idx >= 0 {
			if idx > printed {
				fmt.Print(seen[printed:idx])
			}
			fmt.Println()
			presenter.Info("Writing skill files...")
			suppressed = true
			return
		}
		fmt.Print(token)
	}
}

func showFiles(parsed skill.ParsedResponse) {
	presenter.Separator()
	for _, f := range parsed.Files {
		presenter.Info(fmt.Sprintf("  %s (%d bytes)", f.Path, len(f.Content)))
	}
	presenter.Separator()
}

func installFiles(parsed skill.ParsedResponse, request skill.CapabilityRequest, dir, description string) error {
	files, err := skillpkg.EnsureFrontmatter(parsed.Files, description)
	if err != nil {
		return err
	}

	if dir == "" {
		dir, err = skillpkg.DefaultInstallDir(request.TargetAgent)
		if err != nil {
			return err
		}
	}

	name := skillpkg.Slug(description)
	for _, f := range files {
		if f.Path != skill.SkillFileName {
			continue
		}
		if metadata, err := skillpkg.ParseFrontmatter([]byte(f.Content)); err == nil && metadata.Name != "" {
			name = metadata.Name
		}
		break
	}

	skillDir, err := skillpkg.Install(dir, name, files)
	if err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Installed skill to %s", skillDir))
	return nil
}

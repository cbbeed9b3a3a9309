package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/questions"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

var questionsCmd = &cobra.Command{
	Use:   "questions [description]",
	Short: "Generate clarifying questions for a capability description",
	Long:  `Generate the clarifying-question plan for a description and print it as JSON.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		complexity, _ := cmd.Flags().GetString("complexity")
		agent, _ := cmd.Flags().GetString("agent")

		llmConfig, err := llm.GetConfigFromViper()
		if err != nil {
			presenter.Error(err, "failed to load configuration")
			os.Exit(1)
		}
		handle, err := llm.SelectModel(llmConfig, llm.CapabilityStructuredOutput)
		if err != nil {
			presenter.Error(err, "no structured-output provider configured")
			os.Exit(1)
		}

		plan, err := questions.NewGenerator(handle).Generate(cmd.Context(), skill.CapabilityRequest{
			Description: strings.Join(args, " "),
			Complexity:  skill.Complexity(complexity),
			TargetAgent: agent,
		})
		if err != nil {
			presenter.Error(err, "question generation failed")
			os.Exit(1)
		}

		encoded, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			presenter.Error(err, "failed to encode plan")
			os.Exit(1)
		}
		fmt.Println(string(encoded))
	},
}

func init() {
	questionsCmd.Flags().String("complexity", string(skill.ComplexitySimple), "Skill complexity (simple or full)")
	questionsCmd.Flags().String("agent", skill.DefaultTargetAgent, "Target agent")
}

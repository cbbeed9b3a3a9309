package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

var installCmd = &cobra.Command{
	Use:   "install [session-id]",
	Short: "Install a saved session's skill package into a skill directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		dir, _ := cmd.Flags().GetString("dir")
		agent, _ := cmd.Flags().GetString("agent")

		service, closeStore, err := openSessionService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open session store")
			os.Exit(1)
		}
		defer closeStore()

		session, err := service.GetSession(ctx, args[0])
		if err != nil {
			presenter.Error(err, "failed to load session")
			os.Exit(1)
		}

		parsed := wire.Parse(session.Spec)
		request := skill.CapabilityRequest{
			Description: session.Description,
			TargetAgent: agent,
		}.Normalize()
		if err := installFiles(parsed, request, dir, session.Description); err != nil {
			presenter.Error(err, "installation failed")
			os.Exit(1)
		}
	},
}

func init() {
	installCmd.Flags().String("dir", "", "Skill directory to install into (defaults to the agent's convention)")
	installCmd.Flags().String("agent", skill.DefaultTargetAgent, "Target agent whose skill directory to use")
}

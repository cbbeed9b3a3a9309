package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/sessions"
)

var loginCmd = &cobra.Command{
	Use:   "login [identity]",
	Short: "Set the active identity and migrate local sessions",
	Long: `Login records the active identity and moves any locally stored
sessions into identity-backed durable storage. Migration runs once; sessions
already migrated are skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := args[0]

		basePath, err := sessions.GetDefaultBasePath()
		if err != nil {
			presenter.Error(err, "failed to resolve storage path")
			os.Exit(1)
		}

		if err := sessions.SetIdentity(basePath, identity); err != nil {
			presenter.Error(err, "failed to set identity")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Logged in as %s", identity))

		// Best-effort: a failed migration must not block login.
		local, err := sessions.NewLocalStore(basePath)
		if err != nil {
			presenter.Warning(fmt.Sprintf("skipping local session migration: %v", err))
			return
		}
		store, err := sessions.GetStore(ctx, sessions.Config{BasePath: basePath, UserID: identity})
		if err != nil {
			presenter.Warning(fmt.Sprintf("skipping local session migration: %v", err))
			return
		}
		defer store.Close()

		result, err := sessions.MigrateLocal(ctx, local, store)
		if err != nil {
			presenter.Warning(fmt.Sprintf("local session migration failed: %v", err))
			return
		}
		if result.Migrated > 0 || result.Skipped > 0 {
			presenter.Info(fmt.Sprintf("Migrated %d local sessions (%d already present, %d failed)",
				result.Migrated, result.Skipped, result.Failed))
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the active identity",
	Run: func(cmd *cobra.Command, args []string) {
		basePath, err := sessions.GetDefaultBasePath()
		if err != nil {
			presenter.Error(err, "failed to resolve storage path")
			os.Exit(1)
		}
		if err := sessions.ClearIdentity(basePath); err != nil {
			presenter.Error(err, "failed to clear identity")
			os.Exit(1)
		}
		presenter.Success("Logged out")
	},
}

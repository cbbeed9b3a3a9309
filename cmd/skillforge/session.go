package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/sessions"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved generation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := runSessionsList(cmd.Context(), jsonOutput); err != nil {
			presenter.Error(err, "failed to list sessions")
			os.Exit(1)
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a saved session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := runSessionsShow(cmd.Context(), args[0], jsonOutput); err != nil {
			presenter.Error(err, "failed to show session")
			os.Exit(1)
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSessionsDelete(cmd.Context(), args[0]); err != nil {
			presenter.Error(err, "failed to delete session")
			os.Exit(1)
		}
	},
}

func init() {
	sessionsListCmd.Flags().Bool("json", false, "Output as JSON")
	sessionsShowCmd.Flags().Bool("json", false, "Output as JSON")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func openSessionService(ctx context.Context) (*sessions.Service, func(), error) {
	basePath, err := sessions.GetDefaultBasePath()
	if err != nil {
		return nil, nil, err
	}

	store, err := sessions.GetStore(ctx, sessions.Config{
		BasePath: basePath,
		UserID:   sessions.CurrentIdentity(basePath),
	})
	if err != nil {
		return nil, nil, err
	}
	return sessions.NewService(store), func() { store.Close() }, nil
}

func runSessionsList(ctx context.Context, jsonOutput bool) error {
	service, closeStore, err := openSessionService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := service.ListSessions(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoded, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	if len(list) == 0 {
		presenter.Info("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFILES\tUPDATED")
	for _, session := range list {
		parsed := wire.Parse(session.Spec)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			session.ID, session.Title, len(parsed.Files),
			session.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runSessionsShow(ctx context.Context, id string, jsonOutput bool) error {
	service, closeStore, err := openSessionService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	session, err := service.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoded, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	presenter.Section(session.Title)
	presenter.Info(fmt.Sprintf("ID:      %s", session.ID))
	presenter.Info(fmt.Sprintf("Created: %s", session.CreatedAt.Format("2006-01-02 15:04")))
	presenter.Info(fmt.Sprintf("Updated: %s", session.UpdatedAt.Format("2006-01-02 15:04")))
	presenter.Separator()

	parsed := wire.Parse(session.Spec)
	if parsed.Message != "" {
		presenter.Info(parsed.Message)
		presenter.Separator()
	}
	for _, f := range parsed.Files {
		presenter.Section(f.Path)
		fmt.Println(f.Content)
	}
	return nil
}

func runSessionsDelete(ctx context.Context, id string) error {
	service, closeStore, err := openSessionService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := service.DeleteSession(ctx, id); err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Deleted session %s", id))
	return nil
}

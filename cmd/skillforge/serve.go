package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the skillforge HTTP API server.

Exposes question generation, SSE generation streaming, and session CRUD
under /api/v1. Configuration comes from flags, the config file's "server"
section, and SKILLFORGE_* environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		config := &server.Config{
			Host: "localhost",
			Port: 8080,
		}
		if err := viper.UnmarshalKey("server", config); err != nil {
			presenter.Error(err, "failed to load server configuration")
			os.Exit(1)
		}
		if cmd.Flags().Changed("host") {
			config.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			config.Port, _ = cmd.Flags().GetInt("port")
		}
		if config.MaxTokens == 0 {
			config.MaxTokens = viper.GetInt("llm.max_tokens")
		}

		llmConfig, err := llm.GetConfigFromViper()
		if err != nil {
			presenter.Error(err, "failed to load model configuration")
			os.Exit(1)
		}
		genHandle, err := llm.SelectModel(llmConfig, llm.CapabilityGeneration)
		if err != nil {
			presenter.Error(err, "no model available for generation")
			os.Exit(1)
		}
		questionHandle, err := llm.SelectModel(llmConfig, llm.CapabilityStructuredOutput)
		if err != nil {
			presenter.Error(err, "no model available for structured output")
			os.Exit(1)
		}

		service, closeStore, err := openSessionService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open session store")
			os.Exit(1)
		}
		defer closeStore()

		srv, err := server.NewServer(config, genHandle, questionHandle, service)
		if err != nil {
			presenter.Error(err, "failed to create server")
			os.Exit(1)
		}
		if err := srv.Start(ctx); err != nil {
			presenter.Error(err, "server exited with error")
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the server to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

var tracingShutdown func(context.Context) error

func init() {
	viper.SetEnvPrefix("SKILLFORGE")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillforge")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillforge",
	Short: "Generate installable AI-agent skill packages from plain-language descriptions",
	Long: `Skillforge turns a capability description into an installable skill
package through a conversational pipeline: clarifying questions, typed
configuration collection, and streamed generation with refinement turns.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		// Flags are bound to viper by now, so tracing config is complete.
		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize tracing: %v\n", err)
			return
		}
		tracingShutdown = shutdown
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			generateCmd.Run(cmd, args)
			return
		}
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt or json)")
	rootCmd.PersistentFlags().Int("max-tokens", 0, "Maximum tokens per completion (overrides config)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("llm.max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	rootCmd.AddCommand(withTracing(generateCmd))
	rootCmd.AddCommand(withTracing(questionsCmd))
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(withTracing(installCmd))
	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(versionCmd)

	err := rootCmd.Execute()
	if tracingShutdown != nil {
		if shutdownErr := tracingShutdown(context.Background()); shutdownErr != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down tracing: %v\n", shutdownErr)
		}
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

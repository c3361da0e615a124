package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/pkg/logger"
)

// errReported marks failures whose message was already printed.
var errReported = errors.New("reported")

func newRootCommand() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Extract invoice fields from local PDF files",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.ApplyEnv()
			// logs go to stderr so stdout stays valid JSON
			slog.SetDefault(logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			}, cmd.ErrOrStderr()))
		},
	}

	root.AddCommand(newAICommand(cfg))
	root.AddCommand(newExtractCommand(cfg))
	root.AddCommand(newAnalyzeCommand(cfg))
	return root
}

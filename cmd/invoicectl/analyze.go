package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/model"
	"github.com/Hizashii/money/service"
)

func newAnalyzeCommand(cfg *config.Config) *cobra.Command {
	var useAI bool

	cmd := &cobra.Command{
		Use:   "analyze <pdf>...",
		Short: "Print the detailed extraction and risk assessment of PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ai *service.AIExtractor
			if useAI {
				ai = service.NewAIExtractor(&cfg.Gemini)
			}
			return runAnalyze(cmd, args, ai)
		},
	}

	cmd.Flags().BoolVar(&useAI, "ai", false, "try Gemini first, falling back to text heuristics")
	return cmd
}

func runAnalyze(cmd *cobra.Command, paths []string, ai *service.AIExtractor) error {
	decoder := service.NewPDFTextDecoder()
	results := make([]model.Extraction, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		name := filepath.Base(path)

		if ai != nil {
			ext, err := ai.Extract(cmd.Context(), data, name)
			if err == nil {
				results = append(results, service.FromAI(ext, name))
				continue
			}
			slog.Warn("ai extraction unavailable, using heuristics", "file", name, "reason", service.ReasonOf(err))
		}

		text, err := decoder.DecodeText(data)
		if err != nil {
			slog.Warn("pdf text decode failed", "file", name, "error", err)
			text = ""
		}
		ex := service.AnalyzeInvoice(text, name)
		slog.Info("invoice analyzed", "file", name, "status", ex.Legitimacy.Status, "score", ex.Legitimacy.Score)
		results = append(results, ex)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

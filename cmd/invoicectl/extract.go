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

func newExtractCommand(cfg *config.Config) *cobra.Command {
	var xlsxPath string
	var useAI bool

	cmd := &cobra.Command{
		Use:   "extract <pdf>...",
		Short: "Extract vendor, date, total and VAT from PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ai *service.AIExtractor
			if useAI {
				ai = service.NewAIExtractor(&cfg.Gemini)
			}
			return runExtract(cmd, args, ai, xlsxPath)
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the spreadsheet report to this path")
	cmd.Flags().BoolVar(&useAI, "ai", false, "try Gemini first, falling back to text heuristics")
	return cmd
}

func runExtract(cmd *cobra.Command, paths []string, ai *service.AIExtractor, xlsxPath string) error {
	decoder := service.NewPDFTextDecoder()
	invoices := make([]model.Invoice, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		name := filepath.Base(path)

		if ai != nil {
			ext, err := ai.Extract(cmd.Context(), data, name)
			if err == nil {
				invoices = append(invoices, ext.Summary())
				continue
			}
			slog.Warn("ai extraction unavailable, using heuristics", "file", name, "reason", service.ReasonOf(err))
		}

		text, err := decoder.DecodeText(data)
		if err != nil {
			slog.Warn("pdf text decode failed", "file", name, "error", err)
			text = ""
		}
		invoices = append(invoices, service.ExtractInvoice(text, name))
	}

	out, err := json.MarshalIndent(invoices, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if xlsxPath == "" {
		return nil
	}
	report, err := service.BuildReport(invoices)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}
	data, err := report.XLSX()
	if err != nil {
		return err
	}
	if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", xlsxPath, err)
	}
	slog.Info("report written", "path", xlsxPath, "rows", len(invoices))
	return nil
}

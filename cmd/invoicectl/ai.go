package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/service"
)

const defaultInvoicePDF = "invoice.pdf"

func newAICommand(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Extract the extended invoice schema with Gemini",
		Long: `Sends one PDF to Gemini and prints the extracted fields as JSON.
The file is taken from --file, then INVOICE_PDF, then ./invoice.pdf.
GEMINI_API_KEY or GOOGLE_API_KEY must be set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAI(cmd, cfg, resolvePDFPath(file))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the invoice PDF")
	return cmd
}

func resolvePDFPath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("INVOICE_PDF")); p != "" {
		return p
	}
	return defaultInvoicePDF
}

func runAI(cmd *cobra.Command, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(cmd.ErrOrStderr(), "File not found: %s\n", path)
			fmt.Fprintln(cmd.ErrOrStderr(), "Set INVOICE_PDF or place invoice.pdf in the current directory.")
			return errReported
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	inv, err := service.NewAIExtractor(&cfg.Gemini).Extract(cmd.Context(), data, filepath.Base(path))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Extraction failed. Ensure GEMINI_API_KEY is set.")
		fmt.Fprintf(cmd.ErrOrStderr(), "reason: %s\n", service.ReasonOf(err))
		return errReported
	}

	out, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview <phase> [file]",
	Short: "Show the replacement map a submission would produce",
	Long: `Send a submission to the preview endpoint. Nothing is created: no folders,
documents or lead records.

Examples:
  # Preview a saved phase-one webhook body
  leadctl preview phase-one submission.json

  # From stdin
  cat phase-two.json | leadctl preview 2 -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	var (
		content []byte
		err     error
	)
	if len(args) < 2 || args[1] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[1], err)
		}
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return fmt.Errorf("no submission to preview")
	}
	return call(cmd, http.MethodPost, "/api/v1/preview/"+args[0], "application/json", content, true)
}

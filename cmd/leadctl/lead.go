package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(leadCmd)
	leadCmd.AddCommand(leadGetCmd)
	leadCmd.AddCommand(leadRetryCmd)
}

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Inspect and retry leads",
	Long: `Inspect and retry leads.

Examples:
  # Show a lead record
  leadctl lead get 0b6f3c1e-8d3a-4c55-9d7e-2f0c3b1a9e44

  # Reset a lead in ERROR and run phase two again
  leadctl lead retry 0b6f3c1e-8d3a-4c55-9d7e-2f0c3b1a9e44`,
}

var leadGetCmd = &cobra.Command{
	Use:   "get <lead-id>",
	Short: "Show a lead record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodGet, "/api/v1/leads/"+url.PathEscape(args[0]), "", nil, true)
	},
}

var leadRetryCmd = &cobra.Command{
	Use:   "retry <lead-id>",
	Short: "Reset a lead in ERROR and rerun phase two",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodPost, "/api/v1/leads/"+url.PathEscape(args[0])+"/retry", "application/json", nil, true)
	},
}

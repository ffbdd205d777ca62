// Package main implements leadctl, the operator CLI for an OxiLeads server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL of the OxiLeads server
	serverURL string
	// token is the operator JWT sent on /api/v1 calls
	token   string
	timeout time.Duration
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Operator CLI for the OxiLeads server",
	Long: `leadctl talks to a running OxiLeads server over HTTP.
It logs in, inspects and retries leads, previews replacement maps and checks health.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("OXILEADS_SERVER", "http://localhost:8080"), "OxiLeads server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("OXILEADS_TOKEN"), "operator token (or OXILEADS_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Long: `Check the health of the OxiLeads server and its dependencies.

Examples:
  leadctl health
  leadctl health --server http://leads.internal:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodGet, "/healthz", "", nil, false)
	},
}

// errorResponse is the server's error body.
type errorResponse struct {
	Error string `json:"error"`
}

// call sends one request and pretty-prints the JSON answer to stdout.
func call(cmd *cobra.Command, method, path, contentType string, body []byte, authed bool) error {
	out, err := request(method, path, contentType, body, authed)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func request(method, path, contentType string, body []byte, authed bool) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, rdr)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		if token == "" {
			return nil, fmt.Errorf("no token: run 'leadctl login' and set OXILEADS_TOKEN or --token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return data, nil
}

func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

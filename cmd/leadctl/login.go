package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail    string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "operator email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", os.Getenv("OXILEADS_PASSWORD"), "operator password (prompted when empty)")
	_ = loginCmd.MarkFlagRequired("email")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print an operator token",
	Long: `Log in with the operator account and print a token for later commands.

Examples:
  export OXILEADS_TOKEN=$(leadctl login --email ops@example.com)`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
	}

	body, err := json.Marshal(map[string]string{"email": loginEmail, "password": password})
	if err != nil {
		return err
	}
	data, err := request(http.MethodPost, "/api/v1/auth/login", "application/json", body, false)
	if err != nil {
		return err
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Token)
	return nil
}

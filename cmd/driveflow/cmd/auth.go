package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/driveflow/driveflow"
	"github.com/driveflow/driveflow/authflow"
)

var (
	authScope   string
	authTimeout time.Duration
	tokenPath   string
)

var authCmd = &cobra.Command{
	Use:   "auth <recipient-uid>",
	Short: "Request delegated access from a resource owner",
	Long:  "Issues a device-code grant, pushes the approval request to the given\nrecipient, and waits until the owner approves, refuses, or the request expires.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		token, err := client.RequestAccess(cmd.Context(), driveflow.AccessRequest{
			TargetID: args[0],
			Scope:    authScope,
			Timeout:  authTimeout,
		})
		if err != nil {
			return err
		}

		fmt.Println("Authorization granted.")
		fmt.Println("  " + token.String())
		if tokenPath != "" {
			if err := writeTokenFile(tokenPath, token); err != nil {
				return err
			}
			fmt.Println("Token saved to", tokenPath)
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh a saved access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readTokenFile(tokenPath)
		if err != nil {
			return err
		}
		if token.RefreshToken == "" {
			return fmt.Errorf("saved token has no refresh token")
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		fresh, err := client.RefreshAccess(cmd.Context(), token.RefreshToken)
		if err != nil {
			return err
		}
		if err := writeTokenFile(tokenPath, fresh); err != nil {
			return err
		}
		fmt.Println("Token refreshed.")
		fmt.Println("  " + fresh.String())
		return nil
	},
}

func init() {
	authCmd.Flags().StringVar(&authScope, "scope", "", "authorization scope (default from config)")
	authCmd.Flags().DurationVar(&authTimeout, "timeout", 0, "how long to wait for approval (default from config)")
	authCmd.Flags().StringVar(&tokenPath, "token-file", defaultTokenPath(), "where to save the granted token")
	refreshCmd.Flags().StringVar(&tokenPath, "token-file", defaultTokenPath(), "token file to refresh")

	rootCmd.AddCommand(authCmd, refreshCmd)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".driveflow-token.json"
	}
	return filepath.Join(home, ".driveflow", "token.json")
}

// Token persistence belongs to the CLI layer; the SDK core never touches
// the filesystem.

func writeTokenFile(path string, token *authflow.TokenResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func readTokenFile(path string) (*authflow.TokenResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var token authflow.TokenResult
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &token, nil
}

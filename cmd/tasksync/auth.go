package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erauner12/tasksync/internal/config"
	"github.com/erauner12/tasksync/internal/credentials"
	"github.com/spf13/cobra"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token for the sync server",
	Long: `Store an access token in the configured credential store.

The token is read from --token, or from the first line of stdin when the
flag is omitted.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token (JWT)")
}

// tokenStore is a credential source that can persist tokens.
type tokenStore interface {
	Store(tok string) error
	Delete() error
}

func storeFor(cfg config.CredentialsConfig) (tokenStore, error) {
	switch cfg.Source {
	case config.CredentialFile:
		return credentials.NewFile(cfg.File), nil
	case config.CredentialKeyring:
		return credentials.NewKeyring(cfg.KeyringService, cfg.Account), nil
	default:
		return nil, fmt.Errorf("credential source %q is read-only", cfg.Source)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ts, err := storeFor(cfg.Credentials)
	if err != nil {
		return err
	}

	tok := strings.TrimSpace(loginToken)
	if tok == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no token given: pass --token or pipe it on stdin")
		}
		tok = strings.TrimSpace(line)
	}
	if tok == "" {
		return errors.New("no token given: pass --token or pipe it on stdin")
	}
	if credentials.Expired(tok, time.Now()) {
		return errors.New("token is already expired")
	}

	if err := ts.Store(tok); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s\n", cfg.Credentials.Source)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ts, err := storeFor(cfg.Credentials)
	if err != nil {
		return err
	}
	if err := ts.Delete(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/gadievron/mailmatch/internal/config"
	"github.com/gadievron/mailmatch/internal/oauth"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailmatch",
	Short: "Find email addresses for names from your own mailbox",
	Long: `mailmatch resolves display names to email addresses by searching your
Gmail headers, calendar invites, and message bodies, scoring every
candidate address it finds against the name.

Feed it a CSV of names and it writes back the best match per name,
with alternates and a confidence grade. Already-resolved names are
skipped on re-runs, so interrupted batches can simply be restarted.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// oauthSetupHint returns help text for OAuth configuration issues.
func oauthSetupHint() string {
	configPath := "<config file>"
	if cfg != nil {
		configPath = cfg.ConfigFilePath()
	}
	return fmt.Sprintf(`
To use mailmatch, you need a Google Cloud OAuth credential with the
Gmail and Calendar APIs enabled:
  1. Create an OAuth client in the Google Cloud console
  2. Download the client_secret.json file
  3. Create or edit %s:
       [oauth]
       client_secrets = "/path/to/client_secret.json"`, configPath)
}

// errOAuthNotConfigured returns a helpful error when OAuth client secrets are missing.
func errOAuthNotConfigured() error {
	return fmt.Errorf("OAuth client secrets not configured.%s", oauthSetupHint())
}

// wrapOAuthError adds setup instructions when the root cause is a missing
// or unreadable secrets file.
func wrapOAuthError(err error) error {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("OAuth client secrets file not accessible.%s", oauthSetupHint())
	}
	return err
}

// getTokenSourceWithReauth tries to get a token source for the given email.
// If the token exists but is expired or revoked, it deletes the old token
// and re-runs the browser flow.
func getTokenSourceWithReauth(ctx context.Context, oauthMgr *oauth.Manager, email string) (oauth2.TokenSource, error) {
	tokenSource, err := oauthMgr.TokenSource(ctx, email)
	if err == nil {
		return tokenSource, nil
	}

	if !oauthMgr.HasToken(email) {
		return nil, fmt.Errorf("get token source: %w (run 'add-account %s' first)", err, email)
	}

	fmt.Printf("Token for %s is expired or revoked. Re-authorizing...\n", email)

	if delErr := oauthMgr.DeleteToken(email); delErr != nil {
		return nil, fmt.Errorf("delete expired token: %w", delErr)
	}

	if authErr := oauthMgr.Authorize(ctx, email, false); authErr != nil {
		return nil, fmt.Errorf("re-authorize %s: %w", email, authErr)
	}

	tokenSource, err = oauthMgr.TokenSource(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get token source after re-authorization: %w", err)
	}

	return tokenSource, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.mailmatch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides MAILMATCH_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

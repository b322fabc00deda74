package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gadievron/mailmatch/internal/oauth"
)

var (
	addHeadless bool
	forceReauth bool
)

var addAccountCmd = &cobra.Command{
	Use:   "add-account <email>",
	Short: "Authorize a Gmail account via OAuth",
	Long: `Authorize a Gmail account by completing the OAuth2 flow. mailmatch
requests read-only access to Gmail and Calendar.

By default, opens a browser for authorization. Use --headless for the
device code flow on machines without a browser.

If a token already exists, the command skips authorization. Use --force
to delete the existing token and re-authorize.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		if cfg.OAuth.ClientSecrets == "" {
			return errOAuthNotConfigured()
		}

		oauthMgr, err := oauth.NewManager(cfg.OAuth.ClientSecrets, cfg.TokensDir(), logger)
		if err != nil {
			return wrapOAuthError(fmt.Errorf("create oauth manager: %w", err))
		}

		if forceReauth && oauthMgr.HasToken(email) {
			fmt.Printf("Removing existing token for %s...\n", email)
			if err := oauthMgr.DeleteToken(email); err != nil {
				return fmt.Errorf("delete existing token: %w", err)
			}
		}

		if oauthMgr.HasToken(email) {
			fmt.Printf("Account %s is already authorized (token at %s).\n", email, oauthMgr.TokenPath(email))
			fmt.Println("Use --force to re-authorize.")
			return nil
		}

		if err := oauthMgr.Authorize(cmd.Context(), email, addHeadless); err != nil {
			return fmt.Errorf("authorize %s: %w", email, err)
		}

		fmt.Printf("Account %s authorized.\n", email)
		return nil
	},
}

func init() {
	addAccountCmd.Flags().BoolVar(&addHeadless, "headless", false, "use the device code flow instead of a browser")
	addAccountCmd.Flags().BoolVar(&forceReauth, "force", false, "delete any existing token and re-authorize")
	rootCmd.AddCommand(addAccountCmd)
}

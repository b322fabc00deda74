package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gadievron/mailmatch/internal/api"
	"github.com/gadievron/mailmatch/internal/store"
)

var serveAccount string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the mailmatch HTTP API in the foreground.

Endpoints:
  GET  /health                  liveness check (no auth)
  GET  /api/v1/stats            outcome counts
  GET  /api/v1/outcomes         stored outcomes, newest first
  GET  /api/v1/outcomes/{name}  outcome for one name
  POST /api/v1/resolve          resolve a name on demand

The resolve endpoint needs an authorized account; pass it with
--account. Without it the server answers from stored outcomes only.

Set [server] api_key in config.toml to require authentication.
Use Ctrl+C to stop the server gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAccount, "account", "", "Gmail account for on-demand resolution")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	if err := s.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	var res api.NameResolver
	if serveAccount != "" {
		r, err := buildResolver(ctx, serveAccount, true)
		if err != nil {
			return err
		}
		res = r
	}

	apiServer := api.NewServer(cfg, s, res, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("mailmatch API server started\n")
	fmt.Printf("  Address: http://%s\n", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.APIPort)))
	if serveAccount != "" {
		fmt.Printf("  Resolution account: %s\n", serveAccount)
	} else {
		fmt.Printf("  Resolution: disabled (no --account)\n")
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
		return err
	}
	return nil
}

// Command catalogd serves the drinks catalog and offers offline token checks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogd",
		Short: "Drinks catalog guarded by bearer JWTs",
		Long: `catalogd serves the drinks catalog over HTTP. Listing drinks is public;
reading recipes and changing the catalog require an access token issued by
the configured OAuth 2.0 / OIDC authorization server.

Configuration is read from the environment (AUTH_ISSUER, AUTH_AUDIENCE,
CATALOG_STORE, ...).`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd(), newAuthorizeCmd())
	return cmd
}

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/internal/config"
)

type authorizeResult struct {
	Granted     bool     `json:"granted"`
	Subject     string   `json:"sub,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Status      int      `json:"status,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func newAuthorizeCmd() *cobra.Command {
	var (
		permission string
		token      string
	)
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Evaluate a bearer token against a permission",
		Long: `authorize runs a token through the same checks the server applies and
prints the decision as JSON. The token is taken from --token or read from
stdin. The command fails when access would be refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if token == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			gate, err := newGate(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build authorization gate: %w", err)
			}

			var res authorizeResult
			id, authErr := gate.AuthorizeToken(cmd.Context(), strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")), permission)
			if authErr == nil {
				res = authorizeResult{Granted: true, Subject: id.UserID(), Permissions: id.Permissions()}
			} else {
				kind := auth.KindOf(authErr)
				res = authorizeResult{Kind: string(kind), Status: kind.HTTPStatus(), Message: authErr.Error()}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if authErr != nil {
				return errors.New("access denied")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&permission, "permission", "", "permission the token must grant (empty checks only that a permission claim exists)")
	cmd.Flags().StringVar(&token, "token", "", "access token; read from stdin when omitted")
	return cmd
}

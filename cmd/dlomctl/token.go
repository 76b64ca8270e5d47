package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/auth"
	"github.com/spf13/cobra"
)

// secretEnv is read when --secret is not given; it matches the server's env key.
const secretEnv = "DLOM_JWT_SECRET"

var errMissingSecret = errors.New("set --secret or " + secretEnv)

func newTokenCommand() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		Example: `  dlomctl token --secret s3cret --role editor --ttl 1h
  dlomctl loadgen --token "$(dlomctl token --role editor)"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv(secretEnv)
			}
			if secret == "" {
				return errMissingSecret
			}
			r, ok := auth.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("%w: unknown role %q", auth.ErrInvalidToken, role)
			}
			token, err := auth.IssueToken([]byte(secret), subject, r, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "HS256 signing secret (default $"+secretEnv+")")
	f.StringVar(&subject, "subject", "dlomctl", "token subject")
	f.StringVar(&role, "role", string(auth.RoleViewer), "viewer or editor")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}

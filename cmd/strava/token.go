package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/auth"
	"github.com/alainabartfeld/strava-activities/internal/config"
)

func newTokenCmd(cfg config.Config) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the report API",
		Long:  "Signs an HS256 token with JWT_SECRET and JWT_ISSUER carrying the reports:read scope.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			signed, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, []string{auth.ScopeReportsRead}, ttl)
			if err != nil {
				return err
			}
			printf("%s\n", signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "local", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

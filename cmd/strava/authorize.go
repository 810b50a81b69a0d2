package main

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/strava"
)

func newAuthorizeCmd(cfg config.Config) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Exchange a one-time authorization code for a refresh token",
		Long: `Approve the application at
  https://www.strava.com/oauth/authorize?client_id=<id>&response_type=code&redirect_uri=http://localhost&approval_prompt=force&scope=activity:read_all
then pass the code query parameter of the redirect with --code (or STRAVA_CODE).
The printed refresh token goes into STRAVA_REFRESH_TOKEN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var missing []string
			if cfg.ClientID == "" {
				missing = append(missing, config.EnvClientID)
			}
			if cfg.ClientSecret == "" {
				missing = append(missing, config.EnvClientSecret)
			}
			if len(missing) > 0 {
				return &config.MissingEnvError{Keys: missing}
			}

			sess, err := startSession(ctx, cfg, "authorize")
			if err != nil {
				return err
			}
			defer sess.Close(ctx)

			if code == "" {
				code = cfg.AuthCode
			}
			auth := strava.NewAuthorizer(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret,
				strava.WithLogger(sess.logger), strava.WithTimeout(cfg.HTTPTimeout))
			tok, err := auth.Exchange(ctx, strings.TrimSpace(code))
			if err != nil {
				return err
			}

			color.Green("Authorization succeeded")
			printf("%s=%s\n", config.EnvRefreshToken, tok.RefreshToken)
			printf("access token expires at %s\n", tok.Expiry.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the redirect URL")
	return cmd
}

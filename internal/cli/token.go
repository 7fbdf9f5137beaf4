package cli

import (
	"fmt"
	"time"

	"assessment-service/internal/auth"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("jwt secret not configured")
			}
			token, err := auth.NewVerifier(cfg.Auth.JWTSecret).Issue(userID, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "demo-user", "user id placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 2*time.Hour, "token lifetime")
	return cmd
}

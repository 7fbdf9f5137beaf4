package cli

import (
	"context"
	"fmt"
	"os"

	"assessment-service/internal/domain"
	redisinfra "assessment-service/internal/infra/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// NewSeedCmd loads an assessment YAML file into Postgres and opens a session for a user.
func NewSeedCmd(configPath *string) *cobra.Command {
	var (
		file   string
		userID string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load an assessment from YAML and create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			content, err := readContent(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return err
			}
			pool, store, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.PutContent(ctx, content); err != nil {
				return err
			}
			if cfg.Redis.Addr != "" {
				client := newRedisClient(cfg)
				defer client.Close()
				if err := dropCachedContent(ctx, client, content.Assessment.ID); err != nil {
					return err
				}
			}
			session := domain.Session{ID: uuid.NewString(), UserID: userID, AssessmentID: content.Assessment.ID}
			if err := store.CreateSession(ctx, session); err != nil {
				return err
			}
			logger.Info("assessment seeded",
				zap.String("assessment_id", content.Assessment.ID),
				zap.Int("questions", len(content.Questions)),
				zap.String("session_id", session.ID),
			)
			fmt.Fprintln(cmd.OutOrStdout(), session.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/sample_assessment.yaml", "assessment YAML file")
	cmd.Flags().StringVar(&userID, "user", "demo-user", "user that owns the new session")
	return cmd
}

func readContent(path string) (domain.Content, error) {
	var content domain.Content
	data, err := os.ReadFile(path)
	if err != nil {
		return content, fmt.Errorf("read assessment: %w", err)
	}
	if err := yaml.Unmarshal(data, &content); err != nil {
		return content, fmt.Errorf("parse assessment: %w", err)
	}
	for i := range content.Questions {
		if content.Questions[i].Position == 0 {
			content.Questions[i].Position = i + 1
		}
	}
	if err := content.Validate(); err != nil {
		return content, fmt.Errorf("parse assessment: %w", err)
	}
	return content, nil
}

// dropCachedContent evicts a re-seeded assessment from the shared Redis cache
// so running servers score against the new answer key on the next open.
func dropCachedContent(ctx context.Context, client *redis.Client, assessmentID string) error {
	if err := redisinfra.NewContentCache(client, nil, 0).Invalidate(ctx, assessmentID); err != nil {
		return fmt.Errorf("invalidate cached assessment %s: %w", assessmentID, err)
	}
	return nil
}

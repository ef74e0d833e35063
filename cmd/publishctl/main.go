// Command publishctl runs maintenance tasks for the publishing API.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"publishing-api/config"
	"publishing-api/middleware"
	"publishing-api/models"
	"publishing-api/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	settings *config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "publishctl",
	Short:         "Maintenance commands for the publishing API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables")
		}

		var err error
		settings, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = config.NewLogger(settings)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the pages and publishing_workflows tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration complete.")
		return nil
	},
}

var publishScheduledCmd = &cobra.Command{
	Use:   "publish-scheduled",
	Short: "Publish due scheduled pages and unpublish expired ones once",
	RunE: func(cmd *cobra.Command, args []string) error {
		lockName, _ := cmd.Flags().GetString("lock-name")

		db, err := openDB()
		if err != nil {
			return err
		}

		job := services.NewScheduledPublishingJob(db, lockName, logger.Named("scheduler"))
		summary, err := job.Run(cmd.Context(), time.Now().UTC())
		if err != nil {
			if errors.Is(err, services.ErrScheduledPublishingAlreadyRunning) {
				return errors.New("scheduled publishing already running (advisory lock held)")
			}
			return fmt.Errorf("scheduled publishing failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Published: %d, unpublished: %d (at %s)\n",
			summary.Published, summary.Unpublished, summary.ProcessedAt.Format(time.RFC3339))
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Sign a JWT for an actor",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		hours, _ := cmd.Flags().GetInt("hours")

		ttl := settings.JWTExpiry()
		if hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}

		token, err := middleware.GenerateToken(settings.JWTSecret, userID, email, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func openDB() (*gorm.DB, error) {
	return config.OpenDB(settings, logger)
}

func init() {
	publishScheduledCmd.Flags().String("lock-name", "scheduled_publishing_job", "MySQL advisory lock name (empty to disable)")

	issueTokenCmd.Flags().String("user", "", "actor id stored in the token (required)")
	issueTokenCmd.Flags().String("email", "", "actor e-mail stored in the token")
	issueTokenCmd.Flags().Int("hours", 0, "token lifetime in hours (default JWT_EXPIRE_HOURS)")
	_ = issueTokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(migrateCmd, publishScheduledCmd, issueTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

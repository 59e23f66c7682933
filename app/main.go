package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guyuepp/go-comment-engine/internal/config"
	mysqlRepo "github.com/Guyuepp/go-comment-engine/internal/repository/mysql"
)

const dbRetryInterval = 2 * time.Second

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "comment-engine",
		Short:         "Comment storage and moderation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "config", ".env", "Path to an env file with the settings")

	rootCmd.AddCommand(serveCommand(&envFile), migrateCommand(&envFile))
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func migrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and comments tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := mysqlRepo.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logrus.Info("database schema is up to date")
			return nil
		},
	}
}

func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDB connects to MySQL, retrying while the server comes up
func openDB(cfg config.DatabaseConfig) (*gorm.DB, func(), error) {
	var (
		db  *gorm.DB
		err error
	)
	attempts := max(cfg.MaxRetry, 1)
	for i := range attempts {
		db, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return nil, nil, fmt.Errorf("failed to get sql.DB from gorm.DB: %w", dbErr)
			}
			if err = sqlDB.Ping(); err == nil {
				break
			}
			_ = sqlDB.Close()
		}
		logrus.Warnf("failed to connect to database (attempt %d/%d): %v", i+1, attempts, err)
		if i+1 < attempts {
			time.Sleep(dbRetryInterval)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	closeDB := func() {
		sqlDB, err := db.DB()
		if err != nil {
			logrus.Errorf("got error when getting sql.DB from gorm.DB: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("got error when closing the DB connection: %v", err)
		}
	}
	return db, closeDB, nil
}

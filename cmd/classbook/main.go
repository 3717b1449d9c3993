// Package main provides the classbook operator CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/repository"
	"github.com/noah-isme/classbook-api/internal/service"
	"github.com/noah-isme/classbook-api/pkg/config"
	"github.com/noah-isme/classbook-api/pkg/database"
	"github.com/noah-isme/classbook-api/pkg/logger"
)

type statisticsReader interface {
	Attendance(ctx context.Context, query dto.AttendanceStatisticsQuery) (*dto.AttendanceStatisticsResponse, error)
	Grades(ctx context.Context, query dto.GradeStatisticsQuery) (*dto.GradeStatisticsResponse, error)
	StudentReport(ctx context.Context, query dto.StudentReportQuery) (*dto.StudentReportResponse, error)
}

type environment struct {
	config func() (*config.Config, error)
	open   func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (statisticsReader, func(), error)
}

type globalFlags struct {
	logLevel string
	policy   string
	locale   string
}

func main() {
	rootCmd := newRootCmd(environment{config: config.Load, open: openStatistics})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(env environment) *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "classbook",
		Short:         "Inspect class attendance, grades and report cards",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.policy, "policy", "", "score policy override (missing_as_zero, renormalize)")
	rootCmd.PersistentFlags().StringVar(&flags.locale, "locale", "", "collation locale for name sorting")

	rootCmd.AddCommand(newAttendanceCmd(env, flags))
	rootCmd.AddCommand(newGradesCmd(env, flags))
	rootCmd.AddCommand(newReportCmd(env, flags))
	rootCmd.AddCommand(newTokenCmd(env))

	return rootCmd
}

// session loads configuration, applies flag overrides and opens the statistics source.
func session(cmd *cobra.Command, env environment, flags *globalFlags) (statisticsReader, *zap.Logger, func(), error) {
	cfg, err := env.config()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.policy != "" {
		cfg.Statistics.ScorePolicy = config.NormalizeScorePolicy(flags.policy)
	}
	if flags.locale != "" {
		cfg.Statistics.SortLocale = flags.locale
	}

	logr, err := logger.NewCLI(flags.logLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}

	stats, closeFn, err := env.open(cmd.Context(), cfg, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, nil, err
	}
	return stats, logr, func() {
		closeFn()
		_ = logr.Sync()
	}, nil
}

func openStatistics(ctx context.Context, cfg *config.Config, logr *zap.Logger) (statisticsReader, func(), error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}
	stats := service.NewStatisticsService(
		repository.NewJournalRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewStudentRepository(db),
		repository.NewWeightRepository(db),
		nil,
		validator.New(),
		logr,
		service.StatisticsConfig{
			ScorePolicy: cfg.Statistics.ScorePolicy,
			SortLocale:  cfg.Statistics.SortLocale,
		},
	)
	return stats, func() { _ = db.Close() }, nil
}

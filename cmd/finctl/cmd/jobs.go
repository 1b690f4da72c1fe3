package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wealthwizard/finance-api/internal/app"
	"github.com/wealthwizard/finance-api/internal/config"
	"github.com/wealthwizard/finance-api/internal/logger"
	"github.com/wealthwizard/finance-api/internal/model"
	"golang.org/x/sync/errgroup"
)

func AutoContributeCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "auto-contribute",
		Short: "Apply due auto-contributions for every user, or one user with --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (any, error) {
				if userID != "" {
					return a.GoalService.ProcessAutoContributions(ctx, userID)
				}
				return a.GoalService.ProcessAllAutoContributions(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Only process this user id")
	return cmd
}

func ReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "reports [weekly|monthly]",
		Short:     "Send periodic reports to subscribed users",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.ReportWeekly), string(model.ReportMonthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := model.ReportPeriod(args[0])
			if !period.Valid() {
				return fmt.Errorf("unknown report period %q", args[0])
			}

			return withApp(func(ctx context.Context, a *app.App) (any, error) {
				return a.ReportService.SendPeriodicReports(ctx, period)
			})
		},
	}
}

func InsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Analyze spending and send insights to users with budget alerts on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (any, error) {
				return a.ReportService.AnalyzeAllInsights(ctx)
			})
		},
	}
}

// withApp runs one job against a fully wired app and waits for the
// notifications it queued to be delivered before printing the result.
func withApp(job func(ctx context.Context, a *app.App) (any, error)) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	queueCtx, stopQueue := context.WithCancel(context.Background())
	g := new(errgroup.Group)
	g.Go(func() error {
		return a.Queue.Run(queueCtx)
	})

	result, jobErr := job(ctx, a)

	stopQueue()
	err = g.Wait()
	if jobErr != nil {
		return jobErr
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

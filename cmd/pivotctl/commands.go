package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/activation"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/labeling"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/reliability"
)

// signalContext returns a context cancelled by SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted, stopping...")
		cancel()
	}()

	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a full analysis pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			svc := patterns.NewAnalysisService(
				a.securityRepo, a.breakpointRepo, a.priceRepo,
				a.subpatternRepo, a.predictionRepo, a.cfg.LookbackDays, a.log,
			)

			start := time.Now()
			result, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Run %s finished in %s\n", result.RunID, time.Since(start).Round(time.Millisecond))
			fmt.Printf("  securities:  %d\n", result.Securities)
			fmt.Printf("  subpatterns: %d\n", result.Subpatterns)
			fmt.Printf("  predictions: %d\n", result.Predictions)
			fmt.Printf("  skipped:     %d\n", result.Skipped)
			fmt.Printf("  failed:      %d\n", result.Failed)
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the current top predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			predictions, err := a.predictionRepo.All()
			if err != nil {
				return err
			}
			librarySize, err := a.subpatternRepo.Count()
			if err != nil {
				return err
			}

			fmt.Printf("Library: %d subpatterns, %d predictions\n\n", librarySize, len(predictions))

			if len(predictions) == 0 {
				fmt.Println("No predictions. Run `pivotctl run` first.")
				return nil
			}
			if top < len(predictions) {
				predictions = predictions[:top]
			}

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Symbol", "Score", "Rec", "Exp Ret", "Target", "Close", "Conf", "Matches"}),
			)

			for _, p := range predictions {
				table.Append([]string{
					p.Symbol,
					fmt.Sprintf("%d", p.Score),
					string(p.Recommendation),
					fmt.Sprintf("%+.1f%%", p.MeanExpectedReturn),
					fmt.Sprintf("%.2f", p.TargetPrice),
					fmt.Sprintf("%.2f", p.LatestClose),
					fmt.Sprintf("%d%%", p.Confidence),
					fmt.Sprintf("%d", p.MatchCount),
				})
			}

			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 20, "number of predictions to show")
	return cmd
}

func newPricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Sync the latest daily bars for all active securities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			svc := history.NewSyncService(a.quoteClient, a.securityRepo, a.priceRepo, a.cfg.LookbackDays, a.log)

			securities, err := a.securityRepo.GetAllActive()
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(securities),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Syncing"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]█[reset]",
					SaucerHead:    "[green]█[reset]",
					SaucerPadding: "░",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
			svc.Progress = func(done, total int) {
				bar.Set(done)
			}

			result, err := svc.Sync(ctx)
			fmt.Println()
			if err != nil {
				return err
			}

			fmt.Printf("Synced %d, skipped %d, failed %d\n", result.Synced, result.Skipped, result.Failed)
			return nil
		},
	}
}

func newLabelCmd() *cobra.Command {
	var date string
	var relabel string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Classify daily bars against breakpoint reference levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := labeling.NewService(a.breakpointRepo, a.securityRepo, a.priceRepo, a.log)

			if relabel != "" {
				n, err := svc.RelabelAll(relabel)
				if err != nil {
					return err
				}
				fmt.Printf("Relabeled %d bars for %s\n", n, relabel)
				return nil
			}

			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			result, err := svc.LabelDate(date)
			if err != nil {
				return err
			}
			fmt.Printf("Labeled %d, skipped %d, failed %d for %s\n", result.Labeled, result.Skipped, result.Failed, date)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to label (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&relabel, "relabel", "", "relabel a symbol's full history instead")
	return cmd
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Rescore the universe and rebalance the active set",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			svc := activation.NewService(a.securityRepo, a.breakpointRepo, a.priceRepo, a.log)
			result, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Scored %d, activated %d, deactivated %d, failed %d\n",
				result.Scored, result.Activated, result.Deactivated, result.Failed)
			return nil
		},
	}
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Archive all databases to the configured R2 bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.Backup.Enabled() {
				return fmt.Errorf("remote backups are not configured (set R2_ENDPOINT, R2_BUCKET, R2_ACCESS_KEY, R2_SECRET_KEY)")
			}

			ctx, cancel := signalContext()
			defer cancel()

			r2Client, err := reliability.NewR2Client(ctx, reliability.R2Config{
				Endpoint:  a.cfg.Backup.Endpoint,
				Bucket:    a.cfg.Backup.Bucket,
				AccessKey: a.cfg.Backup.AccessKey,
				SecretKey: a.cfg.Backup.SecretKey,
			}, a.log)
			if err != nil {
				return err
			}

			backupService := reliability.NewBackupService(map[string]*database.DB{
				"universe": a.universeDB,
				"history":  a.historyDB,
				"analysis": a.analysisDB,
			}, a.log)
			svc := reliability.NewR2BackupService(r2Client, backupService, a.cfg.DataDir, a.log)

			if err := svc.CreateAndUploadBackup(ctx); err != nil {
				return err
			}
			if err := svc.PruneBackups(ctx, a.cfg.Backup.Keep); err != nil {
				return err
			}

			fmt.Println("Backup uploaded and old archives pruned")
			return nil
		},
	}
}

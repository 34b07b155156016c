package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/relaysync/internal/config"
	"github.com/agentworkforce/relaysync/internal/logger"
	"github.com/agentworkforce/relaysync/internal/relaysync"
	"github.com/agentworkforce/relaysync/internal/source"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "relaysync",
		Short:         "Export chat platform threads into a Notion knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListCommand())
	root.AddCommand(newSyncCommand())
	root.AddCommand(newResumeCommand())
	root.AddCommand(newFailuresCommand())
	root.AddCommand(newRetryCommand())
	root.AddCommand(newClearCacheCommand())
	return root
}

type app struct {
	cfg           config.Config
	log           zerolog.Logger
	store         relaysync.Store
	fingerprints  *relaysync.FingerprintStore
	progress      *relaysync.JobProgressStore
	failures      *relaysync.FailureLog
	limiter       *relaysync.RateLimiter
	orchestrator  *relaysync.Orchestrator
	source        relaysync.Source
	tokenProvider *relaysync.FileTokenProvider
}

func buildApp(needSource, needDestination bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New("relaysync", cfg.LogLevel)

	store, err := relaysync.BuildStoreFromDSN(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}
	a := &app{
		cfg:          cfg,
		log:          log,
		store:        store,
		fingerprints: relaysync.NewFingerprintStore(store),
		progress:     relaysync.NewJobProgressStore(store, cfg.JobFreshness),
		failures:     relaysync.NewFailureLog(store, cfg.FailureLogLimit),
	}

	if needSource {
		adapter, err := source.Build(source.Config{
			Kind:           cfg.SourceKind,
			Platform:       cfg.SourcePlatform,
			BaseURL:        cfg.SourceBaseURL,
			SessionToken:   cfg.SourceSessionToken,
			SessionCookie:  cfg.SourceSessionCookie,
			URLPattern:     cfg.SourceURLPattern,
			RequestTimeout: cfg.SourceTimeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("build source adapter: %w", err)
		}
		a.source = adapter
	}

	if needDestination {
		tokenProvider, err := a.buildTokenProvider()
		if err != nil {
			a.close()
			return nil, err
		}
		a.limiter = relaysync.NewRateLimiter(relaysync.RateLimiterOptions{
			MaxPerWindow: cfg.RateLimitPerMinute,
			QueueTimeout: cfg.QueueTimeout,
			Logger:       log,
		})
		client := relaysync.NewHTTPNotionClient(relaysync.NotionHTTPClientOptions{
			BaseURL:       cfg.NotionBaseURL,
			TokenProvider: tokenProvider,
			ParentPageID:  cfg.NotionParentPageID,
			UserAgent:     "relaysync/1.0",
		})
		uploader, err := relaysync.NewChunkedUploader(client, a.limiter, relaysync.UploaderOptions{Logger: log})
		if err != nil {
			a.close()
			return nil, err
		}
		orchestrator, err := relaysync.NewOrchestrator(a.source, uploader, a.fingerprints, a.progress, a.failures, relaysync.OrchestratorOptions{
			CheckpointEvery:       cfg.CheckpointEvery,
			CompletenessThreshold: cfg.CompletenessThreshold,
			SourceTimeout:         cfg.SourceTimeout,
			Logger:                log,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.orchestrator = orchestrator
	}
	return a, nil
}

func (a *app) buildTokenProvider() (relaysync.NotionTokenProvider, error) {
	if path := strings.TrimSpace(a.cfg.NotionTokenFile); path != "" {
		provider, err := relaysync.NewFileTokenProvider(path, a.log)
		if err != nil {
			return nil, fmt.Errorf("watch token file: %w", err)
		}
		a.tokenProvider = provider
		return provider.Token, nil
	}
	return relaysync.StaticTokenProvider(a.cfg.NotionToken), nil
}

func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.tokenProvider != nil {
		_ = a.tokenProvider.Close()
	}
	if closer, ok := a.source.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newListCommand() *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads visible to the configured source adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true, false)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := signalContext()
			defer cancel()
			threads, err := a.source.ListThreads(ctx, page, limit)
			if err != nil {
				return err
			}
			for _, thread := range threads.Threads {
				updated := ""
				if !thread.UpdatedAt.IsZero() {
					updated = thread.UpdatedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-40s  %-19s  %s\n", thread.ID, updated, thread.Title)
			}
			if threads.HasMore {
				fmt.Printf("... more on page %d\n", page+1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "threads per page")
	return cmd
}

func newSyncCommand() *cobra.Command {
	var all, force bool
	cmd := &cobra.Command{
		Use:   "sync [thread-id ...]",
		Short: "Export the selected threads to the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true, true)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := signalContext()
			defer cancel()

			ids := args
			if all {
				ids, err = collectAllThreadIDs(ctx, a.source)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return errors.New("no thread ids given; pass ids or --all")
			}
			summary, err := a.orchestrator.RunBulkSync(ctx, ids, force)
			printSummary(summary)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "sync every thread the adapter lists")
	cmd.Flags().BoolVar(&force, "force", false, "export even when the fingerprint is unchanged")
	return cmd
}

func newResumeCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the most recent interrupted bulk job",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true, true)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := signalContext()
			defer cancel()

			job, ok, err := a.progress.FindResumable()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no resumable job found")
				return nil
			}
			fmt.Printf("resuming job %s at %d/%d\n", job.JobID, job.Cursor, len(job.SelectedIDs))
			summary, err := a.orchestrator.ResumeJob(ctx, job, force)
			printSummary(summary)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "export even when the fingerprint is unchanged")
	return cmd
}

func newFailuresCommand() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show recent per-thread export failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(false, false)
			if err != nil {
				return err
			}
			defer a.close()
			if clear {
				return a.failures.Clear()
			}
			records, err := a.failures.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no recorded failures")
				return nil
			}
			for _, record := range records {
				fmt.Printf("%s  %-40s  %s\n", record.Timestamp.Format("2006-01-02 15:04"), record.ID, record.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the failure log")
	return cmd
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <thread-id>",
		Short: "Re-run the export pipeline for one failed thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true, true)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := signalContext()
			defer cancel()
			result, err := a.orchestrator.RetryOne(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s %s\n", result.ID, result.Status, result.Reason)
			return nil
		},
	}
}

func newClearCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache <thread-id ...>",
		Short: "Forget export fingerprints so threads re-export next sync",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(false, false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.fingerprints.Clear(args...)
		},
	}
}

func collectAllThreadIDs(ctx context.Context, src relaysync.Source) ([]string, error) {
	var ids []string
	for page := 0; ; page++ {
		threads, err := src.ListThreads(ctx, page, 50)
		if err != nil {
			return nil, err
		}
		for _, thread := range threads.Threads {
			ids = append(ids, thread.ID)
		}
		if !threads.HasMore {
			return ids, nil
		}
	}
}

func printSummary(summary relaysync.SyncSummary) {
	for _, item := range summary.Items {
		line := fmt.Sprintf("%-40s  %s", item.ID, item.Status)
		if item.Reason != "" {
			line += "  " + item.Reason
		}
		if item.URL != "" {
			line += "  " + item.URL
		}
		fmt.Println(line)
	}
	fmt.Printf("synced=%d skipped=%d failed=%d of %d\n",
		summary.Success, summary.Skipped, summary.Failed, summary.Total)
}

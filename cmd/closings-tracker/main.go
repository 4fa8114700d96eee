package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpereira/closings-tracker/internal/common"
	"github.com/dpereira/closings-tracker/internal/extract"
	"github.com/dpereira/closings-tracker/internal/index"
	"github.com/dpereira/closings-tracker/internal/ledger"
	"github.com/dpereira/closings-tracker/internal/pipeline"
	"github.com/dpereira/closings-tracker/internal/scheduler"
	"github.com/dpereira/closings-tracker/internal/source"
	"github.com/dpereira/closings-tracker/internal/state"
	"github.com/dpereira/closings-tracker/internal/store"
)

var (
	flagFrom        string
	flagTo          string
	flagIgnoreCache bool
)

var rootCmd = &cobra.Command{
	Use:   "closings-tracker",
	Short: "Batch extraction of branch closure reports into archives and an XLSX ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a batch run over all pending documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd.Context(), false)
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Force-reprocess documents, bypassing the processed index",
	Long: `Reprocess runs the pipeline with the index-skip check disabled, so every
document in the window is extracted and marked again. Existing artifacts are
still honored unless --ignore-cache is set, in which case they are rewritten.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd.Context(), true)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted run state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		rs, ok, err := state.Load(ctx, app.props)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No run recorded.")
			return nil
		}
		fmt.Printf("Phase:           %s\n", rs.Phase())
		fmt.Printf("Run ID:          %s\n", rs.RunID)
		fmt.Printf("Current batch:   %d\n", rs.CurrentBatch)
		fmt.Printf("Files processed: %d\n", rs.FilesProcessed)
		fmt.Printf("Failed attempts: %d\n", rs.FailedAttempts)
		fmt.Printf("Started at:      %s\n", rs.StartedAt.Format(time.RFC3339))
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active run at the next batch boundary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		if err := state.SetActive(ctx, app.props, false); err != nil {
			return err
		}
		fmt.Println("Run paused; the next batch boundary will stop scheduling.")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused run from its persisted counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		sched := app.newScheduler(false)
		if err := sched.Resume(ctx); err != nil {
			return err
		}
		<-sched.Done()
		return nil
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Cross-check the processed index against existing artifacts",
	Long: `Diagnose groups indexed identifiers and destination artifacts by day and
reports divergence in both directions: days with index entries but no artifact
(manual inspection), and days with artifacts but no index entry (candidates
for index backfill). Nothing is repaired.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		report := index.Diagnose(app.index, app.cache, app.logger)
		fmt.Printf("Indexed days:  %d\n", len(report.IndexedDays))
		fmt.Printf("Artifact days: %d\n", len(report.ArtifactDays))
		if len(report.MissingArtifactDays) == 0 && len(report.BackfillDays) == 0 {
			fmt.Println("No divergence found.")
			return nil
		}
		for _, day := range report.MissingArtifactDays {
			fmt.Printf("  indexed but no artifacts: %s (%d entries)\n", day, report.IndexedDays[day])
		}
		for _, day := range report.BackfillDays {
			fmt.Printf("  artifacts but not indexed: %s (%d files)\n", day, report.ArtifactDays[day])
		}
		return nil
	},
}

var unindexCmd = &cobra.Command{
	Use:   "unindex <YYYY-MM-DD>",
	Short: "Remove every index entry for one day (maintenance)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid day %q, use YYYY-MM-DD: %w", args[0], err)
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		removed, err := app.index.RemoveDay(day)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d index entries for %s.\n", removed, args[0])
		return nil
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&flagFrom, "from", "", "window start YYYY-MM-DD (mail date header)")
	reprocessCmd.Flags().StringVar(&flagTo, "to", "", "window end YYYY-MM-DD (mail date header)")
	reprocessCmd.Flags().BoolVar(&flagIgnoreCache, "ignore-cache", false, "rewrite artifacts even when they already exist")

	rootCmd.AddCommand(runCmd, reprocessCmd, statusCmd, pauseCmd, resumeCmd, diagnoseCmd, unindexCmd)
}

// app holds everything the commands share, wired once from config.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	props  state.PropertyStore
	index  *index.ProcessedIndex
	cache  *index.ArtifactCache
	dest   *store.FSDestination
	src    source.Source
	ex     *extract.Extractor
}

func newApp(ctx context.Context) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	anchors, err := common.LoadAnchors(cfg.Paths.AnchorsFile)
	if err != nil {
		return nil, err
	}

	props, err := state.Open(ctx, cfg.State, logger)
	if err != nil {
		return nil, err
	}

	dest, err := store.NewFSDestination(cfg.Paths.DestRoot, logger)
	if err != nil {
		_ = props.Close()
		return nil, err
	}
	idx, err := index.OpenProcessed(cfg.Paths.IndexFile, cfg.Batch.IndexFlushThreshold, logger)
	if err != nil {
		_ = props.Close()
		return nil, err
	}
	cache, err := index.ScanArtifacts(cfg.Paths.DestRoot, logger)
	if err != nil {
		_ = props.Close()
		return nil, err
	}

	src, err := buildSources(cfg, logger)
	if err != nil {
		_ = props.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		props:  props,
		index:  idx,
		cache:  cache,
		dest:   dest,
		src:    src,
		ex:     extract.New(anchors, cfg.Batch.ShiftCutoffHour, logger),
	}, nil
}

func buildSources(cfg *common.Config, logger *slog.Logger) (source.Source, error) {
	var from, to time.Time
	if flagFrom != "" {
		t, err := time.Parse("2006-01-02", flagFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid --from date, use YYYY-MM-DD: %w", err)
		}
		from = t
	}
	if flagTo != "" {
		t, err := time.Parse("2006-01-02", flagTo)
		if err != nil {
			return nil, fmt.Errorf("invalid --to date, use YYYY-MM-DD: %w", err)
		}
		// Inclusive end of day.
		to = t.Add(24*time.Hour - time.Second)
	}

	var srcs source.Multi
	if cfg.Paths.InboxDir != "" {
		mb, err := source.NewMailbox(cfg.Paths.InboxDir, cfg.Mail.SubjectPattern, from, to, logger)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, mb)
	}
	if cfg.Paths.SourceDir != "" {
		srcs = append(srcs, source.NewFSSource(cfg.Paths.SourceDir, logger))
	}
	return srcs, nil
}

func (a *app) newScheduler(forced bool) *scheduler.Scheduler {
	proc := pipeline.NewProcessor(a.ex, a.index, a.cache, a.dest, a.logger)
	proc.Forced = forced
	proc.IgnoreCache = flagIgnoreCache

	var mw *ledger.MergeWriter
	if a.cfg.Paths.LedgerFile != "" {
		mw = ledger.NewMergeWriter(a.cfg.Paths.LedgerFile, a.cfg.Paths.LedgerSheet, a.logger)
	}

	return scheduler.New(scheduler.Config{
		BatchSize:   a.cfg.Batch.Size,
		Delay:       a.cfg.Batch.Delay,
		MaxRetries:  a.cfg.Batch.MaxRetries,
		TimeCeiling: a.cfg.Batch.TimeCeiling,
	}, scheduler.Deps{
		Props:         a.props,
		Source:        a.src,
		Processor:     proc,
		Ledger:        mw,
		Dest:          a.dest,
		Continuations: scheduler.NewTimerScheduler(),
		Logger:        a.logger,
	})
}

func (a *app) close() {
	if err := a.props.Close(); err != nil {
		a.logger.Error("state store close failed", "error", err)
	}
}

func runPipeline(ctx context.Context, forced bool) error {
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	sched := app.newScheduler(forced)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	// Continuations fire on in-process timers; stay alive until the run
	// completes, fails or pauses.
	<-sched.Done()

	rs, ok, err := state.Load(ctx, app.props)
	if err != nil || !ok {
		return err
	}
	fmt.Printf("Run %s finished in phase %s: %d files processed across %d batch(es).\n",
		rs.RunID, rs.Phase(), rs.FilesProcessed, rs.CurrentBatch-1)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

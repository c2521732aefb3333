package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LJTian/FundDash/internal/app"
	"github.com/LJTian/FundDash/internal/config"
	"github.com/LJTian/FundDash/internal/logging"
	"github.com/LJTian/FundDash/internal/scheduler"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/LJTian/FundDash/internal/trace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose   bool
	syncKind  string
	seedFile  string
	pruneDays int

	cfg      *config.Config
	undoLogs func()
)

// 一个仅执行一次任务的命令行入口：适合手动触发同步或运维操作
var rootCmd = &cobra.Command{
	Use:           "collect",
	Short:         "FundDash one-shot jobs: sync, seed, prune, quote",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		var err error
		undoLogs, err = logging.Init(level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return trace.Init(cfg.Log.TracingEnabled)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = trace.Shutdown(context.Background())
		if undoLogs != nil {
			undoLogs()
		}
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one background sync (prices and news) and exit",
	RunE:  runSync,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the seed funds and articles (existing rows are kept)",
	RunE:  runSeed,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete articles older than --days together with their fund links",
	RunE:  runPrune,
}

var quoteCmd = &cobra.Command{
	Use:   "quote [ticker...]",
	Short: "Fetch live quotes through the configured quote chain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	syncCmd.Flags().StringVar(&syncKind, "only", "", "limit the run to prices or news")
	seedCmd.Flags().StringVar(&seedFile, "file", "", "seed YAML (defaults to SEED_FILE)")
	pruneCmd.Flags().IntVar(&pruneDays, "days", 30, "age threshold in days")

	rootCmd.AddCommand(syncCmd, seedCmd, pruneCmd, quoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp 组装组件并在 SIGINT / SIGTERM 时取消 ctx
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func runSync(cmd *cobra.Command, args []string) error {
	kind := strings.ToLower(syncKind)
	if kind != "" && kind != scheduler.KindPrices && kind != scheduler.KindNews {
		return fmt.Errorf("--only must be %q or %q", scheduler.KindPrices, scheduler.KindNews)
	}

	if kind == "" {
		kind = scheduler.KindFull
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		s, err := scheduler.New(a.Syncer, a.Store, scheduler.Options{Provider: a.Syncer.NewsSource()})
		if err != nil {
			return err
		}
		defer s.Stop()
		// Ctrl-C 时停止调度器以取消同步
		stop := context.AfterFunc(ctx, s.Stop)
		defer stop()

		rep, err := s.RunKind(ctx, kind)
		printJSON(cmd, rep)
		return err
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := seedFile
	if path == "" {
		path = cfg.SeedFile
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		data, err := storage.LoadSeed(path)
		if err != nil {
			return err
		}
		res, err := a.Store.Seed(ctx, data)
		if err != nil {
			return err
		}
		printJSON(cmd, res)
		return nil
	})
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		n, err := a.Store.PruneNews(ctx, pruneDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d articles older than %d days\n", n, pruneDays)
		return nil
	})
}

func runQuote(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		var failed int
		for _, t := range args {
			q, err := a.Quotes.FetchQuote(ctx, strings.ToUpper(t))
			if err != nil {
				zap.S().Errorf("quote %s: %v", t, err)
				failed++
				continue
			}
			printJSON(cmd, q)
		}
		if failed == len(args) {
			return fmt.Errorf("no quote fetched")
		}
		return nil
	})
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

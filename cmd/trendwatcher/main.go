package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdglab/trendwatcher/internal/analyze"
	"github.com/sdglab/trendwatcher/internal/config"
	"github.com/sdglab/trendwatcher/internal/database"
	"github.com/sdglab/trendwatcher/internal/diff"
	"github.com/sdglab/trendwatcher/internal/email"
	"github.com/sdglab/trendwatcher/internal/llm"
	"github.com/sdglab/trendwatcher/internal/reddit"
	"github.com/sdglab/trendwatcher/internal/report"
	"github.com/sdglab/trendwatcher/internal/run"
	"github.com/sdglab/trendwatcher/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "trendwatcher",
	Short:   "Reddit trend reports for SDG Lab",
	Long:    "TrendWatcher harvests recent subreddit posts, extracts trend signals via an LLM, and tracks how signals shift between reports.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(diffCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trendwatcher", version)
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.ConfigDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		target := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("config already exists: %s", target)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, credentials, and the LLM provider.")
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.CountReports()
		if err != nil {
			return fmt.Errorf("counting reports: %w", err)
		}

		sources, recipients := effectiveSettings(db)

		fmt.Printf("Reports stored: %d\n", count)
		reports, _ := db.GetAllReports()
		if len(reports) > 0 {
			latest := reports[0]
			fmt.Printf("Latest report:  %s (%d posts, %d signals)\n",
				latest.CreatedAt.Format("2006-01-02 15:04"), latest.TotalPostsAnalyzed, len(latest.Signals))
		}
		fmt.Printf("Sources:        %s\n", strings.Join(sources, ", "))
		fmt.Printf("Recipients:     %d configured\n", len(recipients))
		return nil
	},
}

// --- run command ---

var runSources []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full analysis: fetch -> analyze -> save -> email",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner := buildRunner(db)
		result, err := runner.Execute(context.Background(), run.Options{Sources: runSources})
		if err != nil {
			return err
		}

		fmt.Println("\nRun complete:")
		fmt.Printf("  Posts analyzed: %d\n", result.PostsAnalyzed)
		fmt.Printf("  Signals found:  %d\n", result.SignalsFound)
		fmt.Printf("  Email sent:     %v\n", result.EmailSent)
		if len(result.SourceErrors) > 0 {
			fmt.Println("\nSource failures:")
			for _, e := range result.SourceErrors {
				fmt.Printf("  %s\n", e)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "Override subreddits for this run")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(cfg, db, buildRunner(db))
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- reports command ---

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := db.GetAllReports()
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No reports yet. Generate one with: trendwatcher run")
			return nil
		}

		for _, r := range reports {
			fmt.Printf("%s  %s  %3d posts  %2d signals  %s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"),
				r.TotalPostsAnalyzed, len(r.Signals), strings.Join(r.SourceNames, ","))
		}
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.GetReport(args[0])
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("report %s not found", args[0])
		}

		fmt.Printf("Report %s\n", r.ID)
		fmt.Printf("Created:  %s\n", r.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Window:   %s .. %s\n", r.WindowStart.Format("2006-01-02 15:04"), r.WindowEnd.Format("2006-01-02 15:04"))
		fmt.Printf("Posts:    %d\n", r.TotalPostsAnalyzed)
		for source, n := range r.RawPostCountBySource {
			fmt.Printf("  r/%s: %d\n", source, n)
		}
		fmt.Printf("\n%s\n\nSignals:\n", r.Summary)
		for _, sig := range r.Signals {
			fmt.Printf("  [%s/%s] %s\n", sig.Category, sig.Strength, sig.Title)
		}
		return nil
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		deleted, err := db.DeleteReport(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("report %s not found", args[0])
		}
		fmt.Printf("Deleted report %s\n", args[0])
		return nil
	},
}

func init() {
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsDeleteCmd)
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff [id]",
	Short: "Compare a report against the one before it (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		current, err := resolveDiffTarget(db, args)
		if err != nil {
			return err
		}

		previous, err := db.GetPreviousReport(current.CreatedAt)
		if err != nil {
			return err
		}
		if previous == nil {
			return fmt.Errorf("no earlier report to compare against")
		}

		c := diff.Compare(current, previous)
		if !c.HasChanges() {
			fmt.Println("No meaningful changes since the previous report.")
			return nil
		}

		fmt.Printf("Comparing %s (current) with %s (previous)\n\n", current.ID, previous.ID)

		if len(c.NewSignals) > 0 {
			fmt.Println("New signals:")
			for _, sig := range c.NewSignals {
				fmt.Printf("  [%s] %s\n", sig.Strength, sig.Title)
			}
			fmt.Println()
		}
		if len(c.Strengthened) > 0 {
			fmt.Println("Strengthened:")
			for _, sc := range c.Strengthened {
				fmt.Printf("  [%s] %s (was %s)\n", sc.Signal.Strength, sc.Signal.Title, sc.From)
			}
			fmt.Println()
		}
		if len(c.Weakened) > 0 {
			fmt.Println("Weakened:")
			for _, sc := range c.Weakened {
				fmt.Printf("  [%s] %s (was %s)\n", sc.Signal.Strength, sc.Signal.Title, sc.From)
			}
			fmt.Println()
		}
		if len(c.GoneSignals) > 0 {
			fmt.Println("Gone:")
			for _, sig := range c.GoneSignals {
				fmt.Printf("  [%s] %s\n", sig.Strength, sig.Title)
			}
			fmt.Println()
		}

		fmt.Printf("Post volume: %+d (%+d%%)\n", c.PostCountDelta, c.PostCountPercent)
		return nil
	},
}

// --- helpers ---

func openDB() (*database.DB, error) {
	return database.Open(filepath.Join(cfg.GetDataDir(), "trendwatcher.db"))
}

func buildRunner(db *database.DB) *run.Runner {
	provider := llm.CreateProvider(
		cfg.Analysis.Provider,
		cfg.Analysis.Model,
		cfg.Analysis.OllamaURL,
		cfg.Analysis.OpenAIModel,
		cfg.Analysis.APIKeyEnv,
	)
	analyzer := analyze.NewAnalyzer(provider, cfg.Analysis.MaxPosts, cfg.Analysis.MaxTokens, cfg.Reddit.LookbackHours)
	return run.NewRunner(cfg, db, reddit.NewFetcher(cfg.Reddit), analyzer, email.NewClient(cfg.Email))
}

func effectiveSettings(db *database.DB) (sources, recipients []string) {
	settings, err := db.GetSettings()
	if err == nil && settings != nil {
		return settings.Sources, settings.Recipients
	}
	return cfg.Sources, cfg.Email.Recipients
}

func resolveDiffTarget(db *database.DB, args []string) (*report.Report, error) {
	if len(args) == 1 {
		r, err := db.GetReport(args[0])
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("report %s not found", args[0])
		}
		return r, nil
	}

	reports, err := db.GetAllReports()
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no reports yet")
	}
	return &reports[0], nil
}

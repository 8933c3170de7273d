package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"serpharvest/pkg/auth"
	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/config"
	"serpharvest/pkg/crawler"
	"serpharvest/pkg/logger"
	"serpharvest/pkg/ratelimit"
	"serpharvest/pkg/serp"
	"serpharvest/pkg/storage"
	"serpharvest/pkg/worklist"
)

var (
	// Crawl command flags
	workbookPath   string
	checkpointPath string
	siteMarker     string
	dsn            string
	maxRetries     int
	resultsPerPage int
	accountName    string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the work list and harvest listing URLs",
	Long: `Crawl every sheet of the configured Excel work list.

Each subcategory/brand pair becomes one search query, paginated through the
search provider until the results run dry. Matching listing URLs are stored
in Postgres; duplicates are skipped.

A checkpoint file is written before every request. If the crawl is
interrupted, running it again resumes from the exact page it stopped at.
Delete the checkpoint (or run 'serpharvest checkpoint clear') to start over.

Provider credentials come from stored accounts ('serpharvest auth login'),
the SERPHARVEST_API_USER / SERPHARVEST_API_PASS environment variables, or
the configuration file.`,
	Example: `  # Crawl with defaults from config/env
  serpharvest crawl

  # Crawl a specific workbook into a specific database
  serpharvest crawl --workbook ./sheets/watches.xlsx --dsn postgres://localhost/serp

  # Use a specific stored provider account
  serpharvest crawl --account production`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl()
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&workbookPath, "workbook", "w", "", "path to the Excel work list")
	crawlCmd.Flags().StringVar(&checkpointPath, "checkpoint-file", "", "path to the checkpoint file")
	crawlCmd.Flags().StringVar(&siteMarker, "site-marker", "", "substring a result URL must contain to be kept")
	crawlCmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string")
	crawlCmd.Flags().IntVar(&maxRetries, "max-retries", 5, "maximum fetch attempts per page")
	crawlCmd.Flags().IntVar(&resultsPerPage, "results-per-page", 10, "results per provider page")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored provider account")
}

func runCrawl() error {
	flags := make(map[string]interface{})
	if workbookPath != "" {
		flags["workbook"] = workbookPath
	}
	if checkpointPath != "" {
		flags["checkpoint-file"] = checkpointPath
	}
	if siteMarker != "" {
		flags["site-marker"] = siteMarker
	}
	if dsn != "" {
		flags["dsn"] = dsn
	}
	if maxRetries != 5 {
		flags["max-retries"] = maxRetries
	}
	if resultsPerPage != 10 {
		flags["results-per-page"] = resultsPerPage
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("serpharvest starting")

	if err := resolveCredentials(cfg, log); err != nil {
		return err
	}

	if cfg.Database.DSN == "" {
		return errors.New("no database configured: set --dsn, DB_DSN, or database.dsn in the config file")
	}
	if cfg.Worklist.File == "" {
		return errors.New("no work list configured: set --workbook, SERPHARVEST_WORKBOOK, or worklist.file in the config file")
	}
	if _, err := os.Stat(cfg.Worklist.File); err != nil {
		return fmt.Errorf("work list %s not readable: %w", cfg.Worklist.File, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to prepare database schema: %w", err)
	}

	wb, err := worklist.Open(cfg.Worklist.File)
	if err != nil {
		return fmt.Errorf("failed to open work list: %w", err)
	}
	defer wb.Close()

	client := serp.NewClient(&cfg.Provider, log)
	dedup := crawler.NewDeduplicator(store, log)
	ckpt := checkpoint.NewManager(cfg.Crawl.CheckpointFile)
	pacer := ratelimit.NewRandomPacer(
		cfg.Crawl.RequestDelayMin, cfg.Crawl.RequestDelayMax,
		cfg.Crawl.FirstDelayMin, cfg.Crawl.FirstDelayMax,
	)
	engine := crawler.NewEngine(client, dedup, ckpt, pacer, cfg.Crawl, log)
	driver := crawler.NewDriver(engine, ckpt, log)

	runErr := driver.Run(ctx, wb)
	driver.Stats().Report(log)

	switch {
	case errors.Is(runErr, context.Canceled):
		log.Warn("crawl interrupted, checkpoint saved for resume")
		return nil
	case runErr != nil:
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	log.InfoWithFields("crawl completed", map[string]interface{}{
		"total_urls": driver.Stats().TotalURLs(),
	})
	return nil
}

// resolveCredentials fills in the provider username and password from stored
// accounts when the config and environment did not supply them.
func resolveCredentials(cfg *config.Config, log logger.Logger) error {
	if accountName == "" && cfg.Provider.Username != "" && cfg.Provider.Password != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found (use 'serpharvest auth list' to see stored accounts): %w", accountName, err)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return errors.New("no provider credentials found: run 'serpharvest auth login' or set SERPHARVEST_API_USER and SERPHARVEST_API_PASS")
		}
	}

	cfg.Provider.Username = account.Username
	cfg.Provider.Password = account.Password
	log.WithField("account", account.Name).Info("using stored provider credentials")
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"serpharvest/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage serpharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'serpharvest.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

Sensitive values like the provider password are masked.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const exampleConfig = `# serpharvest configuration file
#
# Environment variables override these values, for example
# SERPHARVEST_API_USER, SERPHARVEST_API_PASS, DB_DSN and
# SERPHARVEST_WORKBOOK.

# Search provider settings
provider:
  # Realtime API endpoint
  endpoint: "https://realtime.oxylabs.io/v1/queries"

  # Provider source identifier
  source: "google_search"

  # API credentials (prefer 'serpharvest auth login' over this file)
  username: ""
  password: ""

  # Language the provider should return results in
  results_language: "en"

  # Per-request timeout
  request_timeout: 60s

# Pagination and retry settings
crawl:
  # Results requested per page
  results_per_page: 10

  # Pagination ceiling when the provider reports no total count
  default_max_start: 3000

  # Maximum fetch attempts per page
  max_retries: 5

  # Base delay for exponential backoff between attempts
  retry_base_delay: 1s

  # Stop a work unit after this many consecutive empty pages
  max_consecutive_empty: 2

  # Random delay between page requests
  request_delay_min: 1s
  request_delay_max: 2s

  # Random delay before each work unit's first request
  first_delay_min: 2s
  first_delay_max: 4s

  # Substring a result URL must contain to be kept
  site_marker: "catawiki.com/en/l/"

  # Where the resume checkpoint is written
  checkpoint_file: "crawler_checkpoint.json"

# URL storage settings
database:
  # Postgres connection string
  dsn: ""

  # Connection pool size
  max_conns: 2

# Work-list workbook settings
worklist:
  # Excel workbook with Category / SubCategories / Brand columns
  file: "sheets/catalog.xlsx"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional, stdout only when empty)
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "serpharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Printf("Configuration file created: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store provider credentials with 'serpharvest auth login'")
	fmt.Println("2. Point database.dsn at your Postgres instance")
	fmt.Println("3. Start crawling with 'serpharvest crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	displayCfg := *cfg
	if displayCfg.Provider.Password != "" {
		displayCfg.Provider.Password = "***"
	}
	if displayCfg.Database.DSN != "" {
		displayCfg.Database.DSN = sanitize(displayCfg.Database.DSN)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (SERPHARVEST_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/config"
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the crawl checkpoint",
	Long: `Inspect or clear the crawl checkpoint file.

The checkpoint records the exact position of an interrupted crawl: the
sheet, subcategory, brand, result offset, and page number of the request
that was about to be made. 'serpharvest crawl' resumes from it
automatically; clear it to force the next crawl to start from the top.`,
}

// checkpointShowCmd represents the checkpoint show command
var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := checkpointManager()
		if err != nil {
			return err
		}

		cp, err := manager.Load()
		if err != nil {
			return fmt.Errorf("failed to read checkpoint %s: %w", manager.Path(), err)
		}
		if cp == nil {
			fmt.Printf("No checkpoint at %s; the next crawl starts from the top.\n", manager.Path())
			return nil
		}

		fmt.Printf("Checkpoint: %s\n", manager.Path())
		fmt.Printf("  Sheet:       %s\n", cp.Sheet)
		fmt.Printf("  Category:    %s\n", cp.Category)
		fmt.Printf("  Subcategory: %s\n", cp.Subcategory)
		fmt.Printf("  Brand:       %s\n", cp.Brand)
		fmt.Printf("  Offset:      %d (page %d)\n", cp.Start, cp.PageNum+1)
		fmt.Printf("  Written:     %s\n", cp.Timestamp)
		return nil
	},
}

// checkpointClearCmd represents the checkpoint clear command
var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint so the next crawl starts fresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := checkpointManager()
		if err != nil {
			return err
		}

		if !manager.Exists() {
			fmt.Printf("No checkpoint at %s; nothing to clear.\n", manager.Path())
			return nil
		}
		if err := manager.Clear(); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		fmt.Printf("Checkpoint %s cleared.\n", manager.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
}

func checkpointManager() (*checkpoint.Manager, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return checkpoint.NewManager(cfg.Crawl.CheckpointFile), nil
}

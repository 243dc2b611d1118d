package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/cache"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/config"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the OCR result cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		info, err := store.Info()
		if err != nil {
			return err
		}
		fmt.Printf("Cache directory: %s\n", info.Dir)
		fmt.Printf("Cached results:  %d\n", info.Files)
		fmt.Printf("Total size:      %.1f KB\n", float64(info.TotalBytes)/1024)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached OCR results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		removed, err := store.Clear()
		if err != nil {
			return err
		}
		log := logger.WithComponent("cache")
		log.Info().Int("removed", removed).Msg("Cache cleared via CLI")
		fmt.Printf("Removed %d cached result(s).\n", removed)
		return nil
	},
}

func openStore() (*cache.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cache.NewStore(cfg.CacheDir)
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

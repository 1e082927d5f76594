package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/fetch"
)

var fetchTimeout time.Duration

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Fetch a web page and rank its terms",
	Long: `Downloads the page, decodes it to UTF-8 using the declared or detected
character set, strips markup, and ranks the visible text.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "overall time limit for fetching the page")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := analysisOptions(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	svc := analyzer.New(fetch.New(cfg.Fetch, nil), analyzer.WithSpanLogging(verbose))
	report, err := svc.Analyze(ctx, args[0], opts)
	if err != nil {
		return err
	}
	return printReport(cmd, report)
}

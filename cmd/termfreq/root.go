package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/render"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/logger"
)

var (
	configPath    string
	mode          string
	minLength     int
	maxLength     int
	minCount      int
	topN          int
	stopwords     []string
	stopwordsFile string
	outputFormat  string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "termfreq",
	Short: "Rank the most frequent terms of a page or text",
	Long: `termfreq tokenizes text (latin or cjk), counts every term, filters terms by
length, count and stopwords, and prints the top terms by count.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.SetupTo(cmd.ErrOrStderr(), level, "text")
	},
}

func init() {
	defaults := config.Default().Analysis
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config supplying analysis and fetch defaults")
	flags.StringVarP(&mode, "mode", "m", defaults.Mode, "tokenizer mode: latin or cjk")
	flags.IntVar(&minLength, "min-length", defaults.MinLength, "minimum term length in characters")
	flags.IntVar(&maxLength, "max-length", defaults.MaxLength, "maximum term length in characters")
	flags.IntVar(&minCount, "min-count", defaults.MinCount, "minimum occurrences for a term to be listed")
	flags.IntVarP(&topN, "top", "n", defaults.TopN, "number of terms to print")
	flags.StringSliceVarP(&stopwords, "stopword", "s", nil, "term to exclude (repeatable)")
	flags.StringVar(&stopwordsFile, "stopwords-file", "", "file with one stopword per line")
	flags.StringVarP(&outputFormat, "output", "o", render.FormatTable, "output format: table, json or series")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log fetch and pipeline details to stderr")
}

// loadConfig reads --config when given and applies the analysis flags the
// user set on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	a := &cfg.Analysis
	if flags.Changed("mode") {
		a.Mode = mode
	}
	if flags.Changed("min-length") {
		a.MinLength = minLength
	}
	if flags.Changed("max-length") {
		a.MaxLength = maxLength
	}
	if flags.Changed("min-count") {
		a.MinCount = minCount
	}
	if flags.Changed("top") {
		a.TopN = topN
	}
	if flags.Changed("stopword") {
		a.Stopwords = stopwords
	}
	if flags.Changed("stopwords-file") {
		a.StopwordsFile = stopwordsFile
	}
	return cfg, nil
}

func analysisOptions(cfg *config.Config) (termfreq.Options, error) {
	opts, err := cfg.Analysis.Options()
	if err != nil {
		return termfreq.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

// printReport renders report.Entries in the chosen format. Table output is
// preceded by a one-line summary on stderr.
func printReport(cmd *cobra.Command, report *analyzer.Report) error {
	r, err := render.ForFormat(outputFormat)
	if err != nil {
		return err
	}
	if _, ok := r.(render.Table); ok {
		summarize(cmd.ErrOrStderr(), report)
	}
	return r.Render(cmd.OutOrStdout(), report.Entries)
}

func summarize(w io.Writer, report *analyzer.Report) {
	source := "text"
	if report.FinalURL != "" {
		source = report.FinalURL
	}
	if report.Title != "" {
		source = fmt.Sprintf("%s (%s)", report.Title, source)
	}
	fmt.Fprintf(w, "%s: %d terms, %d distinct, mode %s\n",
		source, report.TotalTerms, report.DistinctTerms, report.Mode)
}

// Package termfreq computes ranked term-frequency tables from plain text.
//
// A run tokenizes the text, counts every term, then walks the counts in
// rank order and keeps the first TopN terms accepted by the filter. Options
// are validated once by NewOptions; a Pipeline holds no mutable state and may
// be shared by concurrent callers.
package termfreq

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/filter"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/frequency"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/ranker"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/tokenizer"
)

// ConfigError is returned for invalid filter bounds or top-N values.
type ConfigError = filter.ConfigError

const (
	DefaultMinLength = 2
	DefaultMaxLength = 5
	DefaultMinCount  = 1
	DefaultTopN      = 20
)

// Options configures one pipeline run.
type Options struct {
	Mode   tokenizer.Mode
	Filter filter.Spec
	TopN   int
}

// NewOptions validates topN and bundles it with mode and spec.
func NewOptions(mode tokenizer.Mode, spec filter.Spec, topN int) (Options, error) {
	if topN < 0 {
		return Options{}, &ConfigError{Field: "top_n", Reason: fmt.Sprintf("must not be negative, got %d", topN)}
	}
	if spec.IsZero() {
		return Options{}, &ConfigError{Field: "filter", Reason: "filter spec was not constructed"}
	}
	if _, err := tokenizer.ParseMode(string(mode)); err != nil {
		return Options{}, &ConfigError{Field: "mode", Reason: err.Error()}
	}
	if mode == "" {
		mode = tokenizer.ModeLatin
	}
	return Options{Mode: mode, Filter: spec, TopN: topN}, nil
}

// DefaultOptions returns latin mode, terms of 2 to 5 characters seen at
// least once, no stopwords, and the top 20 terms.
func DefaultOptions() Options {
	return Options{
		Mode:   tokenizer.ModeLatin,
		Filter: filter.MustNew(DefaultMinLength, DefaultMaxLength, DefaultMinCount, nil),
		TopN:   DefaultTopN,
	}
}

// Result is the output of a run.
type Result struct {
	Entries       []ranker.Entry `json:"entries"`
	TotalTerms    int            `json:"total_terms"`
	DistinctTerms int            `json:"distinct_terms"`
}

// Pipeline runs the tokenize, count, rank sequence with fixed Options.
type Pipeline struct {
	opts      Options
	tokenizer tokenizer.Tokenizer
}

// New prepares a Pipeline. For CJK mode this loads the segmentation
// dictionary, so failures surface here rather than in Run.
func New(opts Options) (*Pipeline, error) {
	tok, err := tokenizer.New(opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}
	return &Pipeline{opts: opts, tokenizer: tok}, nil
}

// Options returns the options the pipeline was built with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run computes the ranked table for text. It never fails; empty text yields
// an empty result.
func (p *Pipeline) Run(text string) Result {
	table := frequency.Build(p.tokenizer.Tokenize(text))
	return Result{
		Entries:       ranker.Rank(table, p.opts.Filter, p.opts.TopN),
		TotalTerms:    table.Total(),
		DistinctTerms: table.Len(),
	}
}

// Run is a convenience wrapper that builds a Pipeline for opts and runs it
// once on text.
func Run(text string, opts Options) (Result, error) {
	p, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return p.Run(text), nil
}

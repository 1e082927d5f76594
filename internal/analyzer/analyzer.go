// Package analyzer ties the collaborators around the term-frequency core
// together: it fetches a page (through the page cache), strips its markup,
// runs the pipeline, and reports the outcome to metrics and analytics.
package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer/cache"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/fetch"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/tracing"
)

const (
	stageFetch    = "fetch"
	stageExtract  = "extract"
	stagePipeline = "pipeline"
)

// topTermsInEvent limits how many ranked terms are copied into analytics
// events.
const topTermsInEvent = 5

// Fetcher retrieves a page. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Report is the outcome of one analysis.
type Report struct {
	URL           string         `json:"url,omitempty"`
	FinalURL      string         `json:"final_url,omitempty"`
	Title         string         `json:"title,omitempty"`
	Charset       string         `json:"charset,omitempty"`
	Mode          string         `json:"mode"`
	TotalTerms    int            `json:"total_terms"`
	DistinctTerms int            `json:"distinct_terms"`
	Entries       []ranker.Entry `json:"entries"`
	CacheHit      bool           `json:"cache_hit"`
	LatencyMs     int64          `json:"latency_ms"`
}

// Service runs analyses. The cache, tracker and metrics are optional.
type Service struct {
	fetcher Fetcher
	cache   *cache.PageCache
	tracker analytics.Tracker
	metrics *metrics.Metrics
	spans   bool
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithCache routes fetches through c.
func WithCache(c *cache.PageCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithTracker reports every analysis, successful or not, to t.
func WithTracker(t analytics.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSpanLogging logs the stage span tree of each analysis at debug level.
func WithSpanLogging(enabled bool) Option {
	return func(s *Service) { s.spans = enabled }
}

func New(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		logger:  slog.Default().With("component", "analyzer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the page cache, or nil when caching is disabled.
func (s *Service) Cache() *cache.PageCache {
	return s.cache
}

// Analyze fetches rawURL and computes its ranked term table. Fetch failures
// are returned before the pipeline runs.
func (s *Service) Analyze(ctx context.Context, rawURL string, opts termfreq.Options) (*Report, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "analyze", logger.RequestID(ctx))
	root.SetAttr("url", rawURL)
	event := analytics.AnalysisEvent{
		URL:       rawURL,
		Host:      hostOf(rawURL),
		Mode:      opts.Mode.String(),
		RequestID: logger.RequestID(ctx),
	}

	pipeline, err := termfreq.New(opts)
	if err != nil {
		return nil, s.fail(ctx, root, event, analytics.OutcomeInvalid, start,
			apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err))
	}
	if _, err := fetch.ValidateURL(rawURL); err != nil {
		return nil, s.fail(ctx, root, event, analytics.OutcomeInvalid, start, err)
	}

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, stageFetch)
	page, cacheHit, err := s.fetchPage(fetchCtx, rawURL)
	fetchSpan.SetAttr("cache_hit", cacheHit)
	fetchSpan.End()
	if err != nil {
		return nil, s.fail(ctx, root, event, analytics.OutcomeFetchError, start, err)
	}
	if s.metrics != nil && !cacheHit {
		s.metrics.FetchedBytes.Observe(float64(len(page.Body)))
	}

	_, extractSpan := tracing.StartChildSpan(ctx, stageExtract)
	text := page.Body
	var title string
	if page.IsHTML() {
		text, err = extract.Text(page.Body)
		title = extract.Title(page.Body)
	}
	extractSpan.End()
	if err != nil {
		return nil, s.fail(ctx, root, event, analytics.OutcomeExtractError, start,
			apperrors.Newf(apperrors.ErrUnsupportedContent, http.StatusUnprocessableEntity, "extracting text: %v", err))
	}

	_, runSpan := tracing.StartChildSpan(ctx, stagePipeline)
	result := pipeline.Run(text)
	runSpan.SetAttr("total_terms", result.TotalTerms)
	runSpan.End()

	report := &Report{
		URL:           rawURL,
		FinalURL:      page.FinalURL,
		Title:         title,
		Charset:       page.Charset,
		Mode:          opts.Mode.String(),
		TotalTerms:    result.TotalTerms,
		DistinctTerms: result.DistinctTerms,
		Entries:       result.Entries,
		CacheHit:      cacheHit,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
	event.CacheHit = cacheHit
	s.succeed(ctx, root, event, report)
	return report, nil
}

// AnalyzeText runs the pipeline on text supplied by the caller.
func (s *Service) AnalyzeText(ctx context.Context, text string, opts termfreq.Options) (*Report, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "analyze_text", logger.RequestID(ctx))
	event := analytics.AnalysisEvent{
		Mode:      opts.Mode.String(),
		RequestID: logger.RequestID(ctx),
	}
	pipeline, err := termfreq.New(opts)
	if err != nil {
		return nil, s.fail(ctx, root, event, analytics.OutcomeInvalid, start,
			apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err))
	}
	_, runSpan := tracing.StartChildSpan(ctx, stagePipeline)
	result := pipeline.Run(text)
	runSpan.End()

	report := &Report{
		Mode:          opts.Mode.String(),
		TotalTerms:    result.TotalTerms,
		DistinctTerms: result.DistinctTerms,
		Entries:       result.Entries,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
	s.succeed(ctx, root, event, report)
	return report, nil
}

func (s *Service) fetchPage(ctx context.Context, rawURL string) (*fetch.Page, bool, error) {
	if s.cache == nil {
		page, err := s.fetcher.Fetch(ctx, rawURL)
		return page, false, err
	}
	page, hit, err := s.cache.GetOrFetch(ctx, rawURL, func(ctx context.Context) (*fetch.Page, error) {
		return s.fetcher.Fetch(ctx, rawURL)
	})
	if s.metrics != nil && err == nil {
		if hit {
			s.metrics.CacheHitsTotal.Inc()
		} else {
			s.metrics.CacheMissesTotal.Inc()
		}
	}
	return page, hit, err
}

func (s *Service) succeed(ctx context.Context, root *tracing.Span, event analytics.AnalysisEvent, report *Report) {
	root.End()
	event.Outcome = analytics.OutcomeOK
	event.TotalTerms = report.TotalTerms
	event.DistinctTerms = report.DistinctTerms
	event.Returned = len(report.Entries)
	event.LatencyMs = report.LatencyMs
	event.Timestamp = time.Now().UTC()
	for i, e := range report.Entries {
		if i == topTermsInEvent {
			break
		}
		event.TopTerms = append(event.TopTerms, e.Term)
	}

	logger.FromContext(ctx).Info("analysis completed",
		"url", report.URL,
		"mode", report.Mode,
		"total_terms", report.TotalTerms,
		"distinct_terms", report.DistinctTerms,
		"returned", len(report.Entries),
		"cache_hit", report.CacheHit,
		"latency_ms", report.LatencyMs,
	)
	s.record(root, event)
	if s.metrics != nil {
		s.metrics.TermsPerAnalysis.Observe(float64(report.TotalTerms))
	}
}

func (s *Service) fail(ctx context.Context, root *tracing.Span, event analytics.AnalysisEvent, outcome analytics.Outcome, start time.Time, err error) error {
	root.End()
	event.Outcome = outcome
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()
	event.Error = err.Error()

	log := logger.FromContext(ctx)
	if outcome == analytics.OutcomeInvalid {
		log.Warn("analysis rejected", "url", event.URL, "error", err)
	} else {
		log.Error("analysis failed", "url", event.URL, "outcome", outcome, "error", err)
	}
	s.record(root, event)
	return err
}

func (s *Service) record(root *tracing.Span, event analytics.AnalysisEvent) {
	if s.metrics != nil {
		s.metrics.AnalysesTotal.WithLabelValues(string(event.Outcome)).Inc()
		for stage, d := range root.ChildDurations() {
			s.metrics.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
		}
	}
	if s.spans {
		root.Log(s.logger)
	}
	if s.tracker != nil {
		s.tracker.Track(event)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// IsFetchError reports whether err came from the fetch collaborator.
func IsFetchError(err error) bool {
	return errors.Is(err, apperrors.ErrFetchFailed)
}

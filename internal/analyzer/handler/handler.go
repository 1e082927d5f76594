// Package handler exposes the analyzer over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/filter"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

// maxRequestBytes bounds JSON request bodies, including submitted text.
const maxRequestBytes = 2 << 20

type Analyzer interface {
	Analyze(ctx context.Context, rawURL string, opts termfreq.Options) (*analyzer.Report, error)
	AnalyzeText(ctx context.Context, text string, opts termfreq.Options) (*analyzer.Report, error)
}

// PageCache is the subset of the page cache exposed over HTTP.
type PageCache interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

type Handler struct {
	analyzer Analyzer
	cache    PageCache
	defaults termfreq.Options
	maxTopN  int
	logger   *slog.Logger
}

// New creates a Handler. defaults apply to every option a request leaves
// unset; maxTopN caps requested top_n values when positive.
func New(a Analyzer, cache PageCache, defaults termfreq.Options, maxTopN int) *Handler {
	return &Handler{
		analyzer: a,
		cache:    cache,
		defaults: defaults,
		maxTopN:  maxTopN,
		logger:   slog.Default().With("component", "analyze-handler"),
	}
}

// Request is the body of POST /api/v1/analyze and /api/v1/analyze/text.
// Unset fields fall back to the service defaults.
type Request struct {
	URL       string   `json:"url,omitempty"`
	Text      string   `json:"text,omitempty"`
	Mode      *string  `json:"mode,omitempty"`
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	MinCount  *int     `json:"min_count,omitempty"`
	TopN      *int     `json:"top_n,omitempty"`
	Stopwords []string `json:"stopwords,omitempty"`
}

// Analyze handles GET /api/v1/analyze?url=... and POST /api/v1/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	var err error
	if r.Method == http.MethodGet {
		req, err = requestFromQuery(r)
	} else {
		err = decodeBody(r, &req)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "url is required"))
		return
	}
	opts, err := h.options(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.analyzer.Analyze(r.Context(), req.URL, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// AnalyzeText handles POST /api/v1/analyze/text.
func (h *Handler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	opts, err := h.options(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.analyzer.AnalyzeText(r.Context(), req.Text, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// options merges the overrides in req over the handler defaults and
// validates the result.
func (h *Handler) options(req Request) (termfreq.Options, error) {
	base := h.defaults
	mode := base.Mode
	if req.Mode != nil {
		m, err := tokenizer.ParseMode(*req.Mode)
		if err != nil {
			return termfreq.Options{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
		}
		mode = m
	}

	minLength, maxLength, minCount := base.Filter.MinLength(), base.Filter.MaxLength(), base.Filter.MinCount()
	if req.MinLength != nil {
		minLength = *req.MinLength
	}
	if req.MaxLength != nil {
		maxLength = *req.MaxLength
	}
	if req.MinCount != nil {
		minCount = *req.MinCount
	}
	stopwords := base.Filter.Stopwords()
	if req.Stopwords != nil {
		stopwords = req.Stopwords
	}
	spec, err := filter.New(minLength, maxLength, minCount, stopwords)
	if err != nil {
		return termfreq.Options{}, configError(err)
	}

	topN := base.TopN
	if req.TopN != nil {
		topN = *req.TopN
	}
	if h.maxTopN > 0 && topN > h.maxTopN {
		topN = h.maxTopN
	}
	opts, err := termfreq.NewOptions(mode, spec, topN)
	if err != nil {
		return termfreq.Options{}, configError(err)
	}
	return opts, nil
}

func configError(err error) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
}

func requestFromQuery(r *http.Request) (Request, error) {
	q := r.URL.Query()
	req := Request{URL: q.Get("url")}
	if q.Has("mode") {
		mode := q.Get("mode")
		req.Mode = &mode
	}
	for name, dst := range map[string]**int{
		"min_length": &req.MinLength,
		"max_length": &req.MaxLength,
		"min_count":  &req.MinCount,
		"top_n":      &req.TopN,
	} {
		if !q.Has(name) {
			continue
		}
		n, err := strconv.Atoi(q.Get(name))
		if err != nil {
			return Request{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be an integer", name)
		}
		*dst = &n
	}
	if q.Has("stopwords") {
		req.Stopwords = []string{}
		for _, w := range strings.Split(q.Get("stopwords"), ",") {
			if w = strings.TrimSpace(w); w != "" {
				req.Stopwords = append(req.Stopwords, w)
			}
		}
	}
	return req, nil
}

func decodeBody(r *http.Request, dst *Request) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body is empty")
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, message := apperrors.Response(err)
	h.writeJSON(w, status, map[string]string{"error": message})
}

// Register mounts the analysis routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analyze", h.Analyze)
	mux.HandleFunc("POST /api/v1/analyze", h.Analyze)
	mux.HandleFunc("POST /api/v1/analyze/text", h.AnalyzeText)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/fetch"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/tokenizer"
)

type stubAnalyzer struct {
	gotURL  string
	gotText string
	gotOpts termfreq.Options
	err     error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, rawURL string, opts termfreq.Options) (*analyzer.Report, error) {
	s.gotURL, s.gotOpts = rawURL, opts
	if s.err != nil {
		return nil, s.err
	}
	return &analyzer.Report{URL: rawURL, Mode: opts.Mode.String()}, nil
}

func (s *stubAnalyzer) AnalyzeText(ctx context.Context, text string, opts termfreq.Options) (*analyzer.Report, error) {
	s.gotText, s.gotOpts = text, opts
	return analyzer.New(nil).AnalyzeText(ctx, text, opts)
}

type stubCache struct {
	hits, misses int64
	invalidated  bool
	err          error
}

func (c *stubCache) Stats() (int64, int64) { return c.hits, c.misses }

func (c *stubCache) Invalidate(ctx context.Context) error {
	c.invalidated = true
	return c.err
}

func newMux(a Analyzer, c PageCache) *http.ServeMux {
	mux := http.NewServeMux()
	New(a, c, termfreq.DefaultOptions(), 50).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestAnalyze_GETDefaults(t *testing.T) {
	stub := &stubAnalyzer{}
	rec := do(t, newMux(stub, nil), http.MethodGet, "/api/v1/analyze?url=https://example.com", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", stub.gotURL)
	assert.Equal(t, termfreq.DefaultTopN, stub.gotOpts.TopN)
	assert.Equal(t, termfreq.DefaultMinLength, stub.gotOpts.Filter.MinLength())
	assert.Equal(t, tokenizer.ModeLatin, stub.gotOpts.Mode)
}

func TestAnalyze_GETOverrides(t *testing.T) {
	stub := &stubAnalyzer{}
	rec := do(t, newMux(stub, nil), http.MethodGet,
		"/api/v1/analyze?url=https://example.com&mode=cjk&min_length=1&max_length=8&min_count=2&top_n=500&stopwords=a,+the,,", "")

	require.Equal(t, http.StatusOK, rec.Code)
	opts := stub.gotOpts
	assert.Equal(t, tokenizer.ModeCJK, opts.Mode)
	assert.Equal(t, 1, opts.Filter.MinLength())
	assert.Equal(t, 8, opts.Filter.MaxLength())
	assert.Equal(t, 2, opts.Filter.MinCount())
	assert.Equal(t, 50, opts.TopN, "top_n is capped")
	assert.Equal(t, []string{"a", "the"}, opts.Filter.Stopwords())
}

func TestAnalyze_POST(t *testing.T) {
	stub := &stubAnalyzer{}
	rec := do(t, newMux(stub, nil), http.MethodPost, "/api/v1/analyze",
		`{"url":"https://example.com","top_n":0,"stopwords":["x"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, stub.gotOpts.TopN)
	assert.Equal(t, []string{"x"}, stub.gotOpts.Filter.Stopwords())
}

func TestAnalyze_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   string
	}{
		{"missing url", http.MethodGet, "/api/v1/analyze", "", "url is required"},
		{"non-integer", http.MethodGet, "/api/v1/analyze?url=https://a.b&top_n=ten", "", "top_n must be an integer"},
		{"negative top n", http.MethodGet, "/api/v1/analyze?url=https://a.b&top_n=-1", "", "top_n"},
		{"max below min", http.MethodGet, "/api/v1/analyze?url=https://a.b&min_length=4&max_length=2", "", "max_length"},
		{"bad mode", http.MethodGet, "/api/v1/analyze?url=https://a.b&mode=thai", "", "thai"},
		{"bad json", http.MethodPost, "/api/v1/analyze", "{", "invalid request body"},
		{"unknown field", http.MethodPost, "/api/v1/analyze", `{"url":"https://a.b","limit":3}`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newMux(&stubAnalyzer{}, nil), tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tt.want)
		})
	}
}

func TestAnalyze_FetchErrorIsBadGateway(t *testing.T) {
	stub := &stubAnalyzer{err: &fetch.Error{URL: "https://down.test", StatusCode: http.StatusServiceUnavailable}}
	rec := do(t, newMux(stub, nil), http.MethodGet, "/api/v1/analyze?url=https://down.test", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "HTTP 503")
}

func TestAnalyze_InternalErrorHidesDetail(t *testing.T) {
	stub := &stubAnalyzer{err: errors.New("secret detail")}
	rec := do(t, newMux(stub, nil), http.MethodGet, "/api/v1/analyze?url=https://a.b", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", errorMessage(t, rec))
}

func TestAnalyzeText(t *testing.T) {
	stub := &stubAnalyzer{}
	rec := do(t, newMux(stub, nil), http.MethodPost, "/api/v1/analyze/text",
		`{"text":"cat dog cat bird dog cat","min_length":1,"max_length":10,"top_n":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report analyzer.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "cat", report.Entries[0].Term)
	assert.Equal(t, 3, report.Entries[0].Count)
	assert.Equal(t, "bird", report.Entries[2].Term)
}

func TestAnalyzeText_EmptyBody(t *testing.T) {
	rec := do(t, newMux(&stubAnalyzer{}, nil), http.MethodPost, "/api/v1/analyze/text", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "empty")
}

func TestCacheEndpoints(t *testing.T) {
	c := &stubCache{hits: 3, misses: 1}
	mux := newMux(&stubAnalyzer{}, c)

	rec := do(t, mux, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "75.0%", stats["hit_rate"])

	rec = do(t, mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.invalidated)
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	mux := newMux(&stubAnalyzer{}, nil)
	rec := do(t, mux, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = do(t, mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheInvalidate_Failure(t *testing.T) {
	mux := newMux(&stubAnalyzer{}, &stubCache{err: errors.New("redis down")})
	rec := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

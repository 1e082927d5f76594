// Command loadtest drives concurrent analysis requests against a running
// server and prints throughput, latency percentiles, cache hit rate and the
// status code mix.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s
//	go run ./cmd/loadtest -pages https://example.com,https://go.dev
//
// Without -pages every request posts a built-in sample to
// /api/v1/analyze/text, which exercises the pipeline without network fetches.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Mode        string
	TopN        int
	Pages       []string
	Texts       []string
}

var sampleTexts = []string{
	"The quick brown fox jumps over the lazy dog while the dog sleeps in the sun.",
	"Go routines and channels make concurrent programs simple; channels carry values between routines.",
	"Caching pages in Redis keeps repeated analyses fast and keeps remote servers happy.",
	"Term frequency counts how often each term appears; the ranker keeps the most frequent terms.",
	"北京是中国的首都，北京有很多名胜古迹。",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the termlens server")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mode := flag.String("mode", "latin", "tokenizer mode sent with each request")
	topN := flag.Int("top", 10, "top_n sent with each request")
	pages := flag.String("pages", "", "comma-separated page URLs to analyze instead of the built-in texts")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Mode:        *mode,
		TopN:        *topN,
		Texts:       sampleTexts,
	}
	for _, p := range strings.Split(*pages, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.Pages = append(cfg.Pages, p)
		}
	}

	target := "text samples"
	if len(cfg.Pages) > 0 {
		target = fmt.Sprintf("%d pages", len(cfg.Pages))
	}
	fmt.Println("=== termlens load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Workload:    %s\n", target)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Println()

	stats := runLoadTest(cfg)
	stats.WriteReport(os.Stdout, cfg.Duration)
	if stats.Total() == 0 {
		fmt.Println("WARNING: No requests completed. Is the server running?")
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				req, err := cfg.request(ctx, i)
				if err != nil {
					stats.Record(0, 0, false, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(time.Since(start), 0, false, err)
					}
					continue
				}
				hit := cacheHit(resp.Body)
				resp.Body.Close()
				stats.Record(time.Since(start), resp.StatusCode, hit, nil)
			}
		}()
	}
	wg.Wait()
	return stats
}

// request builds the i-th request of a worker, cycling through the pages or
// sample texts.
func (c Config) request(ctx context.Context, i int) (*http.Request, error) {
	if len(c.Pages) > 0 {
		q := url.Values{}
		q.Set("url", c.Pages[i%len(c.Pages)])
		q.Set("mode", c.Mode)
		q.Set("top_n", fmt.Sprint(c.TopN))
		return http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/analyze?"+q.Encode(), nil)
	}
	body, err := json.Marshal(map[string]any{
		"text":  c.Texts[i%len(c.Texts)],
		"mode":  c.Mode,
		"top_n": c.TopN,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/analyze/text", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func cacheHit(body io.Reader) bool {
	var report struct {
		CacheHit bool `json:"cache_hit"`
	}
	if err := json.NewDecoder(body).Decode(&report); err != nil {
		return false
	}
	io.Copy(io.Discard, body)
	return report.CacheHit
}

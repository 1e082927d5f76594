package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalAnalyses     int64             `json:"total_analyses"`
	Outcomes          map[Outcome]int64 `json:"outcomes"`
	CacheHits         int64             `json:"cache_hits"`
	CacheMisses       int64             `json:"cache_misses"`
	TotalTermsCounted int64             `json:"total_terms_counted"`
	AvgLatencyMs      float64           `json:"avg_latency_ms"`
	P50LatencyMs      int64             `json:"p50_latency_ms"`
	P95LatencyMs      int64             `json:"p95_latency_ms"`
	P99LatencyMs      int64             `json:"p99_latency_ms"`
	TopHosts          []NameCount       `json:"top_hosts"`
	TopTerms          []NameCount       `json:"top_terms"`
	AnalysesPerMinute float64           `json:"analyses_per_minute"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Aggregator folds analysis events into running service statistics. It is
// safe for concurrent use and also implements Tracker so the server can feed
// it directly when Kafka is disabled.
type Aggregator struct {
	mu         sync.RWMutex
	total      int64
	outcomes   map[Outcome]int64
	cacheHits  int64
	cacheMiss  int64
	termsTotal int64
	latencies  []int64
	next       int
	hostCounts map[string]int64
	termCounts map[string]int64
	startTime  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:   make(map[Outcome]int64),
		latencies:  make([]int64, 0, 1024),
		hostCounts: make(map[string]int64),
		termCounts: make(map[string]int64),
		startTime:  time.Now(),
		now:        time.Now,
		logger:     slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes events from consumer until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent returns a Kafka handler that records each decoded event in agg.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return kafka.JSON(func(ctx context.Context, key string, event AnalysisEvent) error {
		agg.Track(event)
		return nil
	})
}

// Track records a single event.
func (a *Aggregator) Track(event AnalysisEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.outcomes[event.Outcome]++
	if event.Outcome != OutcomeOK {
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMiss++
	}
	a.termsTotal += int64(event.TotalTerms)
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if event.Host != "" {
		a.hostCounts[event.Host]++
	}
	for _, term := range event.TopTerms {
		a.termCounts[term]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalAnalyses:     a.total,
		Outcomes:          make(map[Outcome]int64, len(a.outcomes)),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMiss,
		TotalTermsCounted: a.termsTotal,
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopHosts = topN(a.hostCounts, 10)
	stats.TopTerms = topN(a.termCounts, 20)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.AnalysesPerMinute = float64(stats.TotalAnalyses) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by name so repeated calls
// agree.
func topN(counts map[string]int64, n int) []NameCount {
	result := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, NameCount{Name: name, Count: count})
	}
	slices.SortFunc(result, func(a, b NameCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

package analytics

import "time"

type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeFetchError   Outcome = "fetch_error"
	OutcomeExtractError Outcome = "extract_error"
	OutcomeInvalid      Outcome = "invalid"
)

// AnalysisEvent describes one completed or failed analysis request.
type AnalysisEvent struct {
	Outcome       Outcome   `json:"outcome"`
	URL           string    `json:"url,omitempty"`
	Host          string    `json:"host,omitempty"`
	Mode          string    `json:"mode"`
	TotalTerms    int       `json:"total_terms"`
	DistinctTerms int       `json:"distinct_terms"`
	Returned      int       `json:"returned"`
	TopTerms      []string  `json:"top_terms,omitempty"`
	CacheHit      bool      `json:"cache_hit"`
	LatencyMs     int64     `json:"latency_ms"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Tracker receives analysis events. Implementations must not block.
type Tracker interface {
	Track(event AnalysisEvent)
}

// Trackers fans each event out to every tracker in the slice.
type Trackers []Tracker

func (ts Trackers) Track(event AnalysisEvent) {
	for _, t := range ts {
		t.Track(event)
	}
}

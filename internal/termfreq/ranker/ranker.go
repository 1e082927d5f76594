// Package ranker orders term counts by frequency and cuts the top N.
package ranker

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/filter"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/frequency"
)

// Entry is one row of the ranked output.
type Entry struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Rank orders the table by count descending, breaking ties by first-seen
// order, and returns at most topN entries accepted by spec. The result is
// always a prefix of the fully sorted, fully filtered sequence.
func Rank(table *frequency.Table, spec filter.Spec, topN int) []Entry {
	if topN <= 0 || table == nil || table.Len() == 0 {
		return []Entry{}
	}
	candidates := table.Entries()
	slices.SortStableFunc(candidates, compare)

	result := make([]Entry, 0, min(topN, len(candidates)))
	for _, c := range candidates {
		if !spec.Accept(c.Term, c.Count) {
			continue
		}
		result = append(result, Entry{Term: c.Term, Count: c.Count})
		if len(result) == topN {
			break
		}
	}
	return result
}

func compare(a, b frequency.Entry) int {
	if a.Count != b.Count {
		return b.Count - a.Count
	}
	return a.FirstSeen - b.FirstSeen
}

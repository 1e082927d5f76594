// Package frequency counts term occurrences while remembering the order in
// which each distinct term was first seen. That order is the tiebreak key
// used by the ranker, so it is part of the table's contract.
package frequency

import "iter"

// Entry is a single row of a Table.
type Entry struct {
	Term      string
	Count     int
	FirstSeen int
}

// Table maps terms to occurrence counts. A Table is built once by Build and
// never modified afterwards.
type Table struct {
	index   map[string]int
	entries []Entry
	total   int
}

// Build consumes terms to completion and returns the resulting Table.
// Every term is counted; selection happens later.
func Build(terms iter.Seq[string]) *Table {
	t := &Table{index: make(map[string]int)}
	for term := range terms {
		t.total++
		if i, ok := t.index[term]; ok {
			t.entries[i].Count++
			continue
		}
		t.index[term] = len(t.entries)
		t.entries = append(t.entries, Entry{
			Term:      term,
			Count:     1,
			FirstSeen: len(t.entries),
		})
	}
	return t
}

// Count returns the number of occurrences of term.
func (t *Table) Count(term string) int {
	i, ok := t.index[term]
	if !ok {
		return 0
	}
	return t.entries[i].Count
}

// Len returns the number of distinct terms.
func (t *Table) Len() int {
	return len(t.entries)
}

// Total returns the number of terms consumed, duplicates included.
func (t *Table) Total() int {
	return t.total
}

// Entries returns a copy of the table rows in first-seen order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// All iterates the table rows in first-seen order without copying.
func (t *Table) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range t.entries {
			if !yield(e) {
				return
			}
		}
	}
}

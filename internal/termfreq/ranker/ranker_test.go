package ranker

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/filter"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/frequency"
)

func table(terms ...string) *frequency.Table {
	return frequency.Build(slices.Values(terms))
}

func TestRank(t *testing.T) {
	wide := filter.MustNew(1, 10, 1, nil)

	tests := []struct {
		name  string
		table *frequency.Table
		spec  filter.Spec
		topN  int
		want  []Entry
	}{
		{
			name:  "count descending",
			table: table("cat", "dog", "cat", "bird", "dog", "cat"),
			spec:  wide,
			topN:  3,
			want:  []Entry{{"cat", 3}, {"dog", 2}, {"bird", 1}},
		},
		{
			name:  "stopword counted but excluded",
			table: table("the", "the", "a", "a", "a"),
			spec:  filter.MustNew(1, 5, 1, []string{"the"}),
			topN:  20,
			want:  []Entry{{"a", 3}},
		},
		{
			name:  "ties keep first-seen order",
			table: table("b", "a", "c", "a", "b", "c"),
			spec:  wide,
			topN:  10,
			want:  []Entry{{"b", 2}, {"a", 2}, {"c", 2}},
		},
		{
			name:  "truncates to top n",
			table: table("a", "b", "c", "d"),
			spec:  wide,
			topN:  2,
			want:  []Entry{{"a", 1}, {"b", 1}},
		},
		{
			name:  "filtered terms do not use up the budget",
			table: table("x", "x", "x", "long", "long", "ok"),
			spec:  filter.MustNew(2, 4, 1, nil),
			topN:  2,
			want:  []Entry{{"long", 2}, {"ok", 1}},
		},
		{
			name:  "min count",
			table: table("a", "a", "b"),
			spec:  filter.MustNew(1, 5, 2, nil),
			topN:  5,
			want:  []Entry{{"a", 2}},
		},
		{
			name:  "top n zero",
			table: table("a", "a", "b"),
			spec:  wide,
			topN:  0,
			want:  []Entry{},
		},
		{
			name:  "empty table",
			table: table(),
			spec:  wide,
			topN:  5,
			want:  []Entry{},
		},
		{
			name:  "nil table",
			table: nil,
			spec:  wide,
			topN:  5,
			want:  []Entry{},
		},
		{
			name:  "nothing passes",
			table: table("a", "b"),
			spec:  filter.MustNew(3, 5, 1, nil),
			topN:  5,
			want:  []Entry{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.table, tt.spec, tt.topN))
		})
	}
}

func TestRank_DoesNotMutateTable(t *testing.T) {
	tbl := table("b", "a", "a")
	before := tbl.Entries()
	Rank(tbl, filter.MustNew(1, 5, 1, []string{"a"}), 1)
	assert.Equal(t, before, tbl.Entries())
}

// genCase draws a small vocabulary so that ties and stopword hits are common.
func genCase(t *rapid.T) ([]string, filter.Spec, int) {
	vocab := []string{"a", "go", "cat", "dogs", "birds", "北京", "天安门", "x_1"}
	terms := rapid.SliceOf(rapid.SampledFrom(vocab)).Draw(t, "terms")
	minLen := rapid.IntRange(1, 4).Draw(t, "min_length")
	maxLen := rapid.IntRange(minLen, 6).Draw(t, "max_length")
	minCount := rapid.IntRange(0, 3).Draw(t, "min_count")
	stop := rapid.SliceOfDistinct(rapid.SampledFrom(vocab), rapid.ID[string]).Draw(t, "stopwords")
	topN := rapid.IntRange(0, 10).Draw(t, "top_n")
	return terms, filter.MustNew(minLen, maxLen, minCount, stop), topN
}

func TestRank_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms, spec, topN := genCase(t)
		tbl := table(terms...)
		got := Rank(tbl, spec, topN)

		if len(got) > topN {
			t.Fatalf("len %d exceeds top_n %d", len(got), topN)
		}
		passing := 0
		for e := range tbl.All() {
			if spec.Accept(e.Term, e.Count) {
				passing++
			}
		}
		if len(got) != min(topN, passing) {
			t.Fatalf("len %d, want min(top_n=%d, passing=%d)", len(got), topN, passing)
		}
		for i, e := range got {
			if !spec.Accept(e.Term, e.Count) {
				t.Fatalf("%+v violates the filter", e)
			}
			if e.Count != tbl.Count(e.Term) {
				t.Fatalf("%+v count differs from table count %d", e, tbl.Count(e.Term))
			}
			if i == 0 {
				continue
			}
			prev := got[i-1]
			if prev.Count < e.Count {
				t.Fatalf("%+v ranked above %+v", prev, e)
			}
			if prev.Count == e.Count && slices.Index(terms, prev.Term) > slices.Index(terms, e.Term) {
				t.Fatalf("tie %+v / %+v not in first-seen order", prev, e)
			}
		}
		if again := Rank(tbl, spec, topN); !slices.Equal(got, again) {
			t.Fatalf("non-deterministic: %v then %v", got, again)
		}
	})
}

func TestRank_PrefixOfLargerTopN(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms, spec, topN := genCase(t)
		tbl := table(terms...)
		small := Rank(tbl, spec, topN)
		large := Rank(tbl, spec, topN+5)
		if !slices.Equal(small, large[:len(small)]) {
			t.Fatalf("top %d %v is not a prefix of top %d %v", topN, small, topN+5, large)
		}
	})
}

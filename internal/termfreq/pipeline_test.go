package termfreq

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/filter"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/ranker"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

func mustOptions(t *testing.T, mode tokenizer.Mode, spec filter.Spec, topN int) Options {
	t.Helper()
	opts, err := NewOptions(mode, spec, topN)
	require.NoError(t, err)
	return opts
}

func TestRun_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		text string
		spec filter.Spec
		topN int
		want []ranker.Entry
	}{
		{
			name: "ranked by count",
			text: "cat dog cat bird dog cat",
			spec: filter.MustNew(1, 10, 1, nil),
			topN: 3,
			want: []ranker.Entry{{Term: "cat", Count: 3}, {Term: "dog", Count: 2}, {Term: "bird", Count: 1}},
		},
		{
			name: "stopword excluded",
			text: "the the a a a",
			spec: filter.MustNew(1, 5, 1, []string{"the"}),
			topN: 20,
			want: []ranker.Entry{{Term: "a", Count: 3}},
		},
		{
			name: "empty text",
			text: "",
			spec: filter.MustNew(1, 5, 1, nil),
			topN: 20,
			want: []ranker.Entry{},
		},
		{
			name: "top n zero",
			text: "cat dog cat",
			spec: filter.MustNew(1, 5, 1, nil),
			topN: 0,
			want: []ranker.Entry{},
		},
		{
			name: "punctuation never becomes a term",
			text: "Go, go; GO! go...",
			spec: filter.MustNew(1, 5, 1, nil),
			topN: 5,
			want: []ranker.Entry{{Term: "go", Count: 2}, {Term: "Go", Count: 1}, {Term: "GO", Count: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(tt.text, mustOptions(t, tokenizer.ModeLatin, tt.spec, tt.topN))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Entries)
		})
	}
}

func TestRun_Totals(t *testing.T) {
	res, err := Run("the the a a a", mustOptions(t, tokenizer.ModeLatin, filter.MustNew(1, 5, 1, []string{"the"}), 20))
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalTerms)
	assert.Equal(t, 2, res.DistinctTerms)
}

func TestRun_CJK(t *testing.T) {
	opts := mustOptions(t, tokenizer.ModeCJK, filter.MustNew(2, 5, 1, nil), 5)
	res, err := Run("北京，北京！北京。", opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, ranker.Entry{Term: "北京", Count: 3}, res.Entries[0])
}

func TestRun_CJKMixedScript(t *testing.T) {
	opts := mustOptions(t, tokenizer.ModeCJK, filter.MustNew(1, 10, 1, nil), 3)
	res, err := Run("Hello, world! Hello 北京", opts)
	require.NoError(t, err)
	assert.Equal(t, []ranker.Entry{
		{Term: "Hello", Count: 2},
		{Term: "world", Count: 1},
		{Term: "北京", Count: 1},
	}, res.Entries)
}

func TestNewOptions_Errors(t *testing.T) {
	spec := filter.MustNew(1, 5, 1, nil)

	_, err := NewOptions(tokenizer.ModeLatin, spec, -1)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "top_n", cfgErr.Field)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = NewOptions(tokenizer.ModeLatin, filter.Spec{}, 5)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "filter", cfgErr.Field)

	_, err = NewOptions(tokenizer.Mode("thai"), spec, 5)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "mode", cfgErr.Field)
}

func TestNewOptions_EmptyModeIsLatin(t *testing.T) {
	opts := mustOptions(t, "", filter.MustNew(1, 5, 1, nil), 5)
	assert.Equal(t, tokenizer.ModeLatin, opts.Mode)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, tokenizer.ModeLatin, opts.Mode)
	assert.Equal(t, DefaultMinLength, opts.Filter.MinLength())
	assert.Equal(t, DefaultMaxLength, opts.Filter.MaxLength())
	assert.Equal(t, DefaultMinCount, opts.Filter.MinCount())
	assert.Equal(t, DefaultTopN, opts.TopN)
}

func TestPipeline_ConcurrentRuns(t *testing.T) {
	p, err := New(DefaultOptions())
	require.NoError(t, err)
	text := strings.Repeat("alpha beta beta gamma gamma gamma ", 50)
	want := p.Run(text)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, p.Run(text))
		}()
	}
	wg.Wait()
}

func TestRun_Properties(t *testing.T) {
	words := []string{"go", "Go", "cat", "dogs", "a", "birds", "x1", "été"}
	rapid.Check(t, func(t *rapid.T) {
		tokens := rapid.SliceOf(rapid.SampledFrom(words)).Draw(t, "tokens")
		seps := rapid.SampledFrom([]string{" ", ", ", "\n", "! ", " -- "})
		var b strings.Builder
		for _, tok := range tokens {
			b.WriteString(tok)
			b.WriteString(seps.Draw(t, "sep"))
		}
		text := b.String()

		minLen := rapid.IntRange(1, 3).Draw(t, "min_length")
		spec := filter.MustNew(minLen, rapid.IntRange(minLen, 6).Draw(t, "max_length"), rapid.IntRange(0, 3).Draw(t, "min_count"), nil)
		topN := rapid.IntRange(0, 8).Draw(t, "top_n")
		opts, err := NewOptions(tokenizer.ModeLatin, spec, topN)
		if err != nil {
			t.Fatal(err)
		}

		first, _ := Run(text, opts)
		second, _ := Run(text, opts)
		if !assert.ObjectsAreEqual(first, second) {
			t.Fatalf("non-deterministic output")
		}
		if first.TotalTerms != len(tokens) {
			t.Fatalf("total terms %d, want %d", first.TotalTerms, len(tokens))
		}
		for _, e := range first.Entries {
			want := 0
			for _, tok := range tokens {
				if tok == e.Term {
					want++
				}
			}
			if e.Count != want {
				t.Fatalf("count(%q) = %d, want %d", e.Term, e.Count, want)
			}
			if !spec.Accept(e.Term, e.Count) {
				t.Fatalf("%+v violates the filter", e)
			}
		}
		if len(first.Entries) > topN {
			t.Fatalf("len %d exceeds top_n %d", len(first.Entries), topN)
		}
	})
}

func BenchmarkPipeline(b *testing.B) {
	p, err := New(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat(`Distributed search engines process queries across multiple shards to achieve
horizontal scalability. Each shard maintains its own inverted index. `, 100)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		p.Run(text)
	}
}

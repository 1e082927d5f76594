// Package filter decides which counted terms are eligible for ranked output.
// A Spec is validated once at construction and is safe to share by value.
package filter

import (
	"fmt"
	"slices"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

// ConfigError reports an invalid filter or ranking setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match ConfigError against ErrInvalidInput.
func (e *ConfigError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Spec holds the predicates applied to each (term, count) candidate.
type Spec struct {
	minLength int
	maxLength int
	minCount  int
	stopwords map[string]struct{}
}

// New validates the bounds and returns a Spec. Lengths are measured in runes.
func New(minLength, maxLength, minCount int, stopwords []string) (Spec, error) {
	if minLength < 1 {
		return Spec{}, &ConfigError{Field: "min_length", Reason: fmt.Sprintf("must be at least 1, got %d", minLength)}
	}
	if maxLength < minLength {
		return Spec{}, &ConfigError{Field: "max_length", Reason: fmt.Sprintf("must be >= min_length (%d), got %d", minLength, maxLength)}
	}
	if minCount < 0 {
		return Spec{}, &ConfigError{Field: "min_count", Reason: fmt.Sprintf("must not be negative, got %d", minCount)}
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return Spec{
		minLength: minLength,
		maxLength: maxLength,
		minCount:  minCount,
		stopwords: set,
	}, nil
}

// MustNew is like New but panics on an invalid spec. Intended for
// package-level defaults and tests.
func MustNew(minLength, maxLength, minCount int, stopwords []string) Spec {
	s, err := New(minLength, maxLength, minCount, stopwords)
	if err != nil {
		panic(err)
	}
	return s
}

// Accept reports whether a term with the given count passes every predicate.
func (s Spec) Accept(term string, count int) bool {
	n := utf8.RuneCountInString(term)
	if n < s.minLength || n > s.maxLength {
		return false
	}
	if count < s.minCount {
		return false
	}
	_, stop := s.stopwords[term]
	return !stop
}

func (s Spec) MinLength() int { return s.minLength }
func (s Spec) MaxLength() int { return s.maxLength }
func (s Spec) MinCount() int  { return s.minCount }

// Stopwords returns the stopword set as a sorted slice.
func (s Spec) Stopwords() []string {
	out := make([]string, 0, len(s.stopwords))
	for w := range s.stopwords {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// IsZero reports whether s was never constructed.
func (s Spec) IsZero() bool {
	return s.minLength == 0
}

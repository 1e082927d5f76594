package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		minLength int
		maxLength int
		minCount  int
		field     string
	}{
		{"zero min length", 0, 5, 1, "min_length"},
		{"negative min length", -1, 5, 1, "min_length"},
		{"max below min", 4, 3, 1, "max_length"},
		{"negative min count", 1, 5, -1, "min_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.minLength, tt.maxLength, tt.minCount, nil)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestNew_EqualBoundsAllowed(t *testing.T) {
	spec, err := New(3, 3, 0, nil)
	require.NoError(t, err)
	assert.True(t, spec.Accept("abc", 0))
	assert.False(t, spec.Accept("ab", 5))
}

func TestAccept(t *testing.T) {
	spec := MustNew(2, 4, 2, []string{"the", "and"})

	tests := []struct {
		term  string
		count int
		want  bool
	}{
		{"go", 2, true},
		{"gopher", 9, false},
		{"a", 9, false},
		{"cat", 1, false},
		{"the", 10, false},
		{"The", 10, true},
		{"北京", 2, true},
		{"天安门广场", 2, false},
		{"éé", 2, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spec.Accept(tt.term, tt.count), "Accept(%q, %d)", tt.term, tt.count)
	}
}

func TestAccept_MinCountZero(t *testing.T) {
	spec := MustNew(1, 10, 0, nil)
	assert.True(t, spec.Accept("x", 0))
}

func TestGetters(t *testing.T) {
	spec := MustNew(2, 5, 1, []string{"b", "a", "b"})
	assert.Equal(t, 2, spec.MinLength())
	assert.Equal(t, 5, spec.MaxLength())
	assert.Equal(t, 1, spec.MinCount())
	assert.Equal(t, []string{"a", "b"}, spec.Stopwords())
	assert.False(t, spec.IsZero())
	assert.True(t, Spec{}.IsZero())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew(5, 1, 0, nil) })
}

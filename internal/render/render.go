// Package render formats ranked term tables for terminals and for charting
// front ends.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/ranker"
)

// Renderer writes a ranked term table to w.
type Renderer interface {
	Render(w io.Writer, entries []ranker.Entry) error
}

const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatSeries = "series"
)

// ForFormat returns the renderer registered under name.
func ForFormat(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatTable:
		return Table{}, nil
	case FormatJSON:
		return JSON{Indent: "  "}, nil
	case FormatSeries:
		return Series{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or series)", name)
	}
}

// JSON writes entries as a JSON array of {term, count} objects.
type JSON struct {
	Indent string
}

func (j JSON) Render(w io.Writer, entries []ranker.Entry) error {
	if entries == nil {
		entries = []ranker.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", j.Indent)
	return enc.Encode(entries)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	countStyle  = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Table draws a bordered rank/term/count table.
type Table struct{}

func (Table) Render(w io.Writer, entries []ranker.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No terms matched.")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "TERM", "COUNT").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 2:
				return countStyle
			default:
				return cellStyle
			}
		})
	for i, e := range entries {
		t.Row(strconv.Itoa(i+1), e.Term, strconv.Itoa(e.Count))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// SeriesData is the label/value split used by bar, pie and line charts.
type SeriesData struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// ToSeries splits entries into parallel label and value slices.
func ToSeries(entries []ranker.Entry) SeriesData {
	s := SeriesData{
		Labels: make([]string, len(entries)),
		Values: make([]int, len(entries)),
	}
	for i, e := range entries {
		s.Labels[i] = e.Term
		s.Values[i] = e.Count
	}
	return s
}

// Series writes entries as a SeriesData JSON object.
type Series struct{}

func (Series) Render(w io.Writer, entries []ranker.Entry) error {
	return json.NewEncoder(w).Encode(ToSeries(entries))
}

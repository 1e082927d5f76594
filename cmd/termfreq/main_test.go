package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/termfreq/ranker"
)

// execute runs the root command with args and returns stdout and stderr.
// Flag state is reset first because the commands are package globals.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd.PersistentFlags())
	resetFlags(analyzeCmd.Flags())

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func decodeEntries(t *testing.T, out string) []ranker.Entry {
	t.Helper()
	var entries []ranker.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	return entries
}

func TestText_StdinJSON(t *testing.T) {
	out, _, err := execute(t, "cat dog cat bird dog cat",
		"text", "-", "--output", "json", "--min-length", "1", "--max-length", "10", "--top", "2")
	require.NoError(t, err)
	assert.Equal(t, []ranker.Entry{{Term: "cat", Count: 3}, {Term: "dog", Count: 2}}, decodeEntries(t, out))
}

func TestText_Stopwords(t *testing.T) {
	out, _, err := execute(t, "the cat and the dog",
		"text", "-o", "json", "-s", "the,and")
	require.NoError(t, err)
	assert.Equal(t, []ranker.Entry{{Term: "cat", Count: 1}, {Term: "dog", Count: 1}}, decodeEntries(t, out))
}

func TestText_FileAndStopwordsFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	stop := filepath.Join(dir, "stop.txt")
	require.NoError(t, os.WriteFile(input, []byte("go go go rust rust zig"), 0o644))
	require.NoError(t, os.WriteFile(stop, []byte("# languages to skip\nrust\n"), 0o644))

	out, _, err := execute(t, "", "text", input, "-o", "series", "--stopwords-file", stop)
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":["go","zig"],"values":[3,1]}`, out)
}

func TestText_CJK(t *testing.T) {
	out, _, err := execute(t, "北京，北京！北京。", "text", "-m", "cjk", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []ranker.Entry{{Term: "北京", Count: 3}}, decodeEntries(t, out))
}

func TestText_TableSummary(t *testing.T) {
	out, errOut, err := execute(t, "alpha beta alpha", "text", "--max-length", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, errOut, "text: 3 terms, 2 distinct, mode latin")
}

func TestText_TopZero(t *testing.T) {
	out, _, err := execute(t, "alpha beta", "text", "-n", "0", "-o", "json", "--max-length", "10")
	require.NoError(t, err)
	assert.Empty(t, decodeEntries(t, out))
}

func TestText_InvalidOptions(t *testing.T) {
	_, _, err := execute(t, "x", "text", "--min-length", "4", "--max-length", "2")
	assert.ErrorContains(t, err, "max_length")

	_, _, err = execute(t, "x", "text", "--top", "-1")
	assert.ErrorContains(t, err, "top_n")

	_, _, err = execute(t, "x", "text", "--output", "yaml")
	assert.ErrorContains(t, err, "yaml")
}

func TestText_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", "text", filepath.Join(t.TempDir(), "absent.txt"))
	assert.ErrorContains(t, err, "opening input")
}

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Zoo</title><script>var hidden = 1;</script></head>
<body><p>lion lion tiger</p><p>lion bear</p></body></html>`)
	}))
	defer srv.Close()

	out, errOut, err := execute(t, "", "analyze", srv.URL, "--max-length", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "lion")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, errOut, "Zoo (")
}

func TestAnalyze_RequiresURL(t *testing.T) {
	_, _, err := execute(t, "", "analyze")
	assert.Error(t, err)

	_, _, err = execute(t, "", "analyze", "ftp://example.com")
	assert.ErrorContains(t, err, "http or https")
}

// Command termfreq prints the most frequent terms of a web page or a text
// file.
//
// Usage:
//
//	termfreq analyze https://example.com --top 10
//	termfreq text notes.txt --mode cjk --output json
//	cat notes.txt | termfreq text -
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

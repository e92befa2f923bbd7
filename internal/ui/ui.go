// Package ui renders command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"golang.org/x/term"

	"ragchat/internal/domain"
)

// ShowSuccess displays a success message
func ShowSuccess(w io.Writer, message string) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(w, "✓ %s\n", message)
}

// ShowError displays an error message
func ShowError(w io.Writer, message string) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "✗ %s\n", message)
}

// ShowInfo displays an info message
func ShowInfo(w io.Writer, message string) {
	blue := color.New(color.FgBlue)
	blue.Fprintln(w, message)
}

// ShowWarning displays a warning message
func ShowWarning(w io.Writer, message string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "! %s\n", message)
}

// PrintInfo renders the index status.
func PrintInfo(w io.Writer, info domain.IndexInfo) {
	if !info.Exists {
		ShowInfo(w, fmt.Sprintf("No index yet (dimension %d). Add documents with `ragchat add`.", info.Dimension))
		return
	}
	ShowSuccess(w, fmt.Sprintf("Index ready: %d entries, dimension %d", info.Count, info.Dimension))
}

// PrintResults renders search results, most similar first.
func PrintResults(w io.Writer, results []domain.SearchResult, preview int) {
	if len(results) == 0 {
		ShowInfo(w, "No matches.")
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)
	for i, r := range results {
		cyan.Fprintf(w, "%d. %s", i+1, r.Source)
		faint.Fprintf(w, "  [%s #%d]  similarity=%.3f distance=%.3f\n", r.Type, r.ChunkID, r.Similarity, r.Distance)
		fmt.Fprintf(w, "   %s\n", Preview(r.Content, preview))
	}
}

// PrintAnswer renders an answer followed by its sources.
func PrintAnswer(w io.Writer, a domain.Answer) {
	fmt.Fprintln(w, a.Text)
	if len(a.Sources) == 0 {
		return
	}
	faint := color.New(color.Faint)
	faint.Fprintln(w, "\nSources:")
	for _, s := range a.Sources {
		faint.Fprintf(w, "  - %s (relevance %.2f)\n", s.Source, s.Similarity)
	}
}

// Preview flattens whitespace and cuts text to at most n runes.
func Preview(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if n <= 0 {
		return flat
	}
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "…"
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ConfirmDelete asks before the index is wiped.
func ConfirmDelete(count int) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Delete the index and all %d entries?", count),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Package cli renders feedback rounds and session history for the terminal and reads
// relevance judgments from the user.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/internal/rocchio"
)

const rule = "==========================================================="

// Display prints loop progress. It implements feedback.Reporter.
type Display struct {
	w io.Writer
	// Verbose also prints the top scored candidates behind each expansion.
	Verbose bool
}

// NewDisplay creates a display writing to w.
func NewDisplay(w io.Writer) *Display {
	return &Display{w: w}
}

// RoundStarted prints the round header and the query being issued.
func (d *Display) RoundStarted(round int, query string) {
	fmt.Fprintf(d.w, "\n==================== Round %d ====================\n", round)
	fmt.Fprintf(d.w, "Current query: %s\n", query)
}

// ResultsRetrieved lists the page of results.
func (d *Display) ResultsRetrieved(_ int, docs []*models.Document) {
	fmt.Fprintln(d.w, "\n==================== Retrieved Results ====================")
	for _, doc := range docs {
		fmt.Fprintf(d.w, "Result %d:\n", doc.Rank)
		fmt.Fprintf(d.w, "  Title:   %s\n", doc.Result.Title)
		fmt.Fprintf(d.w, "  URL:     %s\n", doc.Result.URL)
		fmt.Fprintf(d.w, "  Summary: %s\n", doc.Result.Snippet)
		fmt.Fprintf(d.w, "  (HTML?:  %t)\n\n", doc.HTML)
	}
	fmt.Fprintln(d.w, rule)
}

// RoundEvaluated prints the round's precision.
func (d *Display) RoundEvaluated(round *models.Round) {
	fmt.Fprintf(d.w, "Precision = %.4f (%d relevant of %d indexable, %d results)\n",
		round.Precision, round.Relevant, round.Indexable, round.Results)
}

// QueryExpanded prints the terms appended to the query.
func (d *Display) QueryExpanded(_ int, expansion *rocchio.Expansion, ordered []string) {
	fmt.Fprintf(d.w, "Expanding query with new terms: [%s]\n", strings.Join(ordered, " "))
	if !d.Verbose || expansion == nil {
		return
	}
	for i, c := range expansion.Ranked {
		if i == 10 {
			break
		}
		fmt.Fprintf(d.w, "  %2d. %-20s %.4f\n", i+1, c.Term, c.Score)
	}
}

// Stopped prints the stop reason and the final query.
func (d *Display) Stopped(outcome *models.Outcome) {
	fmt.Fprintln(d.w, outcome.Reason.Message())
	fmt.Fprintln(d.w, "\n==================== Finished ====================")
	fmt.Fprintf(d.w, "Final query: %s\n", outcome.FinalQuery)
}

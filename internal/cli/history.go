package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/pkg/utils"
)

// OutputFormat is the format for history output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteSessions writes journal sessions to w in the given format.
func WriteSessions(w io.Writer, sessions []*models.SessionSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s  %s\n", s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Seed:  %s\n", utils.Truncate(s.SeedQuery, 80))
		fmt.Fprintf(w, "Final: %s\n", utils.Truncate(s.FinalQuery, 80))
		fmt.Fprintf(w, "Rounds: %d | Precision: %.4f (target %.2f) | Stop: %s\n",
			s.Rounds, s.FinalPrecision, s.TargetPrecision, s.StopReason)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteRounds writes the rounds of one session to w in the given format.
func WriteRounds(w io.Writer, rounds []*models.Round, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rounds)
	}
	for _, r := range rounds {
		fmt.Fprintf(w, "Round %d: %s\n", r.Number, r.Query)
		fmt.Fprintf(w, "  precision %.4f (%d/%d indexable, %d results)", r.Precision, r.Relevant, r.Indexable, r.Results)
		if len(r.AddedTerms) > 0 {
			fmt.Fprintf(w, ", added [%s]", strings.Join(r.AddedTerms, " "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package models

import "time"

// StopReason explains why the feedback loop terminated.
type StopReason int

const (
	// StopNone means the loop has not stopped.
	StopNone StopReason = iota
	// StopInsufficientResults means the first round returned fewer results than a full page.
	StopInsufficientResults
	// StopTargetReached means precision met or exceeded the target.
	StopTargetReached
	// StopNoRelevant means precision was zero, leaving nothing to expand from.
	StopNoRelevant
	// StopNoNewTerms means expansion produced no candidate terms.
	StopNoNewTerms
	// StopNoResults means a later round returned no results.
	StopNoResults
	// StopMaxRounds means the configured round limit was reached.
	StopMaxRounds
)

// String returns a short identifier for the stop reason.
func (s StopReason) String() string {
	switch s {
	case StopNone:
		return "none"
	case StopInsufficientResults:
		return "insufficient_results"
	case StopTargetReached:
		return "target_reached"
	case StopNoRelevant:
		return "no_relevant"
	case StopNoNewTerms:
		return "no_new_terms"
	case StopNoResults:
		return "no_results"
	case StopMaxRounds:
		return "max_rounds"
	default:
		return "unknown"
	}
}

// MarshalText encodes the stop reason as its identifier.
func (s StopReason) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message returns a human-readable explanation of the stop reason.
func (s StopReason) Message() string {
	switch s {
	case StopInsufficientResults:
		return "Fewer than 10 results returned in the first round. Stopping."
	case StopTargetReached:
		return "Desired precision reached. Stopping."
	case StopNoRelevant:
		return "Precision is 0, no relevant results to learn from. Stopping."
	case StopNoNewTerms:
		return "No new terms to add. Stopping."
	case StopNoResults:
		return "No results retrieved. Stopping."
	case StopMaxRounds:
		return "Round limit reached. Stopping."
	default:
		return ""
	}
}

// Round is the record of a single retrieval/feedback iteration.
type Round struct {
	Number     int         `json:"round"`
	Query      string      `json:"query"`
	Results    int         `json:"results"`
	Indexable  int         `json:"indexable"`
	Relevant   int         `json:"relevant"`
	Precision  float64     `json:"precision"`
	AddedTerms []string    `json:"added_terms,omitempty"`
	Judgments  []*Judgment `json:"-"`
}

// Outcome is the terminal state of a feedback session.
type Outcome struct {
	SessionID  string     `json:"session_id,omitempty"`
	SeedQuery  string     `json:"seed_query"`
	FinalQuery string     `json:"final_query"`
	Reason     StopReason `json:"stop_reason"`
	Rounds     []*Round   `json:"rounds"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// LastRound returns the most recent round, or nil when none ran.
func (o *Outcome) LastRound() *Round {
	if len(o.Rounds) == 0 {
		return nil
	}
	return o.Rounds[len(o.Rounds)-1]
}

// SessionSummary is a journal row describing a finished session.
type SessionSummary struct {
	ID              string    `json:"id"`
	SeedQuery       string    `json:"seed_query"`
	FinalQuery      string    `json:"final_query"`
	TargetPrecision float64   `json:"target_precision"`
	StopReason      string    `json:"stop_reason"`
	Rounds          int       `json:"rounds"`
	FinalPrecision  float64   `json:"final_precision"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

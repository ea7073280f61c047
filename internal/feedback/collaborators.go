// Package feedback runs the relevance-feedback loop: issue a query, collect judgments,
// evaluate precision, and expand the query until a stop condition holds.
package feedback

import (
	"context"
	"time"

	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/internal/rocchio"
)

// SearchProvider returns up to one page of results for a query.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]*models.Result, error)
}

// ContentFetcher retrieves the text of a result page.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*models.Page, error)
}

// JudgmentSource labels a result as relevant or not. rank is 1-based.
type JudgmentSource interface {
	Judge(ctx context.Context, rank int, result *models.Result) (bool, error)
}

// TermOrderer orders expansion terms before they are appended to the query.
type TermOrderer interface {
	Order(terms []string) []string
}

// Reporter receives progress events for display.
type Reporter interface {
	RoundStarted(round int, query string)
	ResultsRetrieved(round int, docs []*models.Document)
	RoundEvaluated(round *models.Round)
	QueryExpanded(round int, expansion *rocchio.Expansion, ordered []string)
	Stopped(outcome *models.Outcome)
}

// Journal records sessions for later inspection.
type Journal interface {
	StartSession(ctx context.Context, id, seedQuery string, targetPrecision float64, startedAt time.Time) error
	RecordRound(ctx context.Context, sessionID string, round *models.Round) error
	FinishSession(ctx context.Context, outcome *models.Outcome) error
}

type keepOrder struct{}

func (keepOrder) Order(terms []string) []string { return append([]string(nil), terms...) }

type nopReporter struct{}

func (nopReporter) RoundStarted(int, string) {}
func (nopReporter) ResultsRetrieved(int, []*models.Document) {}
func (nopReporter) RoundEvaluated(*models.Round) {}
func (nopReporter) QueryExpanded(int, *rocchio.Expansion, []string) {}
func (nopReporter) Stopped(*models.Outcome) {}

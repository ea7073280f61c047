package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/internal/rocchio"
	"github.com/hyperjump/refine/internal/text"
	"github.com/hyperjump/refine/internal/tfidf"
	"github.com/hyperjump/refine/internal/vector"
	"go.uber.org/zap"
)

// Text sources for building document bodies.
const (
	// TextSourceFull indexes the title plus the fetched page text.
	TextSourceFull = "full"
	// TextSourceSnippet indexes the title plus the provider snippet, without fetching.
	TextSourceSnippet = "snippet"
)

// FullPage is the number of results a first round must return to continue.
const FullPage = 10

// Config holds loop parameters.
type Config struct {
	TargetPrecision float64
	// MaxRounds stops the loop after this many rounds; 0 means no limit.
	MaxRounds  int
	TextSource string
}

// Controller drives the feedback loop. It is single-use per Run call and not safe for
// concurrent Runs.
type Controller struct {
	search    SearchProvider
	judge     JudgmentSource
	fetcher   ContentFetcher
	tokenizer *text.Tokenizer
	expander  *rocchio.Expander
	orderer   TermOrderer
	reporter  Reporter
	journal   Journal
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithFetcher sets the page fetcher used in full text mode.
func WithFetcher(f ContentFetcher) ControllerOption {
	return func(c *Controller) { c.fetcher = f }
}

// WithExpander replaces the default Rocchio expander.
func WithExpander(e *rocchio.Expander) ControllerOption {
	return func(c *Controller) { c.expander = e }
}

// WithOrderer sets the orderer applied to expansion terms.
func WithOrderer(o TermOrderer) ControllerOption {
	return func(c *Controller) { c.orderer = o }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) ControllerOption {
	return func(c *Controller) { c.reporter = r }
}

// WithJournal records every session, round and judgment.
func WithJournal(j Journal) ControllerOption {
	return func(c *Controller) { c.journal = j }
}

// NewController creates a controller. Without WithFetcher, full text mode falls back to snippets.
func NewController(search SearchProvider, judge JudgmentSource, tokenizer *text.Tokenizer, cfg Config, opts ...ControllerOption) *Controller {
	if cfg.TextSource == "" {
		cfg.TextSource = TextSourceFull
	}
	c := &Controller{
		search:    search,
		judge:     judge,
		tokenizer: tokenizer,
		expander:  rocchio.NewExpander(),
		orderer:   keepOrder{},
		reporter:  nopReporter{},
		config:    cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes rounds for seed until a stop condition holds. Stop conditions are not errors;
// an error is returned only when judging fails or ctx is canceled, together with the partial outcome.
func (c *Controller) Run(ctx context.Context, seed string) (*models.Outcome, error) {
	query, err := models.NewQuery(seed)
	if err != nil {
		return nil, err
	}
	outcome := &models.Outcome{
		SessionID: uuid.New().String(),
		SeedQuery: query.String(),
		StartedAt: c.now(),
	}
	c.startJournal(ctx, outcome)

	for number := 1; ; number++ {
		round, reason, err := c.runRound(ctx, number, query)
		if round != nil {
			outcome.Rounds = append(outcome.Rounds, round)
			c.recordRound(ctx, outcome.SessionID, round)
		}
		if err != nil {
			c.finish(ctx, outcome, models.StopNone, query)
			return outcome, err
		}
		if reason != models.StopNone {
			c.finish(ctx, outcome, reason, query)
			return outcome, nil
		}
	}
}

// runRound executes one iteration. A nil round means the round stopped before any
// judgment was collected.
func (c *Controller) runRound(ctx context.Context, number int, query *models.Query) (*models.Round, models.StopReason, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.StopNone, err
	}
	q := query.String()
	c.reporter.RoundStarted(number, q)

	results, err := c.search.Search(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.StopNone, ctx.Err()
		}
		c.logger.Warn("search failed, treating as empty result page",
			zap.String("query", q), zap.Error(err))
		results = nil
	}
	c.logger.Debug("search complete", zap.Int("round", number), zap.Int("results", len(results)))

	if number == 1 && len(results) < FullPage {
		return nil, models.StopInsufficientResults, nil
	}
	if len(results) == 0 {
		return nil, models.StopNoResults, nil
	}

	docs := c.buildDocuments(ctx, results)
	c.reporter.ResultsRetrieved(number, docs)

	judgments := make([]*models.Judgment, 0, len(docs))
	for _, doc := range docs {
		relevant, err := c.judge.Judge(ctx, doc.Rank, doc.Result)
		if err != nil {
			return nil, models.StopNone, fmt.Errorf("failed to judge result %d: %w", doc.Rank, err)
		}
		judgments = append(judgments, &models.Judgment{Document: doc, Relevant: relevant})
	}

	precision, relevant, indexable := Precision(judgments)
	round := &models.Round{
		Number:    number,
		Query:     q,
		Results:   len(results),
		Indexable: indexable,
		Relevant:  relevant,
		Precision: precision,
		Judgments: judgments,
	}
	c.reporter.RoundEvaluated(round)

	switch {
	case precision >= c.config.TargetPrecision:
		return round, models.StopTargetReached, nil
	case precision == 0:
		return round, models.StopNoRelevant, nil
	case c.config.MaxRounds > 0 && number >= c.config.MaxRounds:
		return round, models.StopMaxRounds, nil
	}

	expansion := c.expand(query, judgments)
	if len(expansion.Terms) == 0 {
		return round, models.StopNoNewTerms, nil
	}
	ordered := c.orderer.Order(expansion.Terms)
	query.Append(ordered...)
	round.AddedTerms = ordered
	c.reporter.QueryExpanded(number, expansion, ordered)
	return round, models.StopNone, nil
}

// buildDocuments resolves the indexable text of each result.
func (c *Controller) buildDocuments(ctx context.Context, results []*models.Result) []*models.Document {
	docs := make([]*models.Document, 0, len(results))
	for i, r := range results {
		doc := &models.Document{Rank: i + 1, Result: r, HTML: r.LikelyHTML()}
		if doc.HTML {
			doc.Text = c.documentText(ctx, r)
		}
		if doc.Text != "" {
			doc.Indexable = true
			doc.Tokens = c.tokenizer.Tokenize(doc.Text)
		}
		docs = append(docs, doc)
	}
	return docs
}

// documentText returns the title plus body for r, or "" when no body is available.
func (c *Controller) documentText(ctx context.Context, r *models.Result) string {
	if c.config.TextSource == TextSourceSnippet || c.fetcher == nil {
		return strings.TrimSpace(r.Title + " " + r.Snippet)
	}
	page, err := c.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		c.logger.Warn("fetch failed, excluding document", zap.String("url", r.URL), zap.Error(err))
		return ""
	}
	if page == nil || strings.TrimSpace(page.Text) == "" {
		c.logger.Debug("no text extracted, excluding document", zap.String("url", r.URL))
		return ""
	}
	return strings.TrimSpace(r.Title + " " + page.Text)
}

// expand builds this round's corpus and returns Rocchio's candidate terms.
func (c *Controller) expand(query *models.Query, judgments []*models.Judgment) *rocchio.Expansion {
	docs := make([]*models.Document, 0, len(judgments))
	for _, j := range judgments {
		docs = append(docs, j.Document)
	}
	corpus := tfidf.BuildDocumentFrequency(docs)

	var relevant, nonRelevant []vector.Sparse
	for _, j := range judgments {
		if !j.Document.Indexable {
			continue
		}
		v := corpus.VectorizeDocument(j.Document)
		if j.Relevant {
			relevant = append(relevant, v)
		} else {
			nonRelevant = append(nonRelevant, v)
		}
	}

	// Query terms go through the same analysis as documents so "Milky-Way" excludes milky and way.
	q0 := rocchio.QueryVector(c.tokenizer.Tokenize(query.String()))
	expansion := c.expander.Expand(q0, relevant, nonRelevant)
	c.logger.Debug("expansion computed",
		zap.Int("corpus_docs", corpus.TotalDocs),
		zap.Int("vocabulary", len(corpus.DocFrequencies)),
		zap.Strings("terms", expansion.Terms),
		zap.Float64("query_drift", 1-vector.Cosine(q0, expansion.Modified)))
	return expansion
}

func (c *Controller) finish(ctx context.Context, outcome *models.Outcome, reason models.StopReason, query *models.Query) {
	outcome.Reason = reason
	outcome.FinalQuery = query.String()
	outcome.FinishedAt = c.now()
	if reason != models.StopNone {
		c.reporter.Stopped(outcome)
	}
	if c.journal == nil {
		return
	}
	// The run context may already be canceled; the journal still records the partial session.
	if err := c.journal.FinishSession(context.WithoutCancel(ctx), outcome); err != nil {
		c.logger.Warn("failed to finish session journal", zap.Error(err))
	}
}

func (c *Controller) startJournal(ctx context.Context, outcome *models.Outcome) {
	if c.journal == nil {
		return
	}
	if err := c.journal.StartSession(ctx, outcome.SessionID, outcome.SeedQuery, c.config.TargetPrecision, outcome.StartedAt); err != nil {
		c.logger.Warn("failed to start session journal", zap.Error(err))
	}
}

func (c *Controller) recordRound(ctx context.Context, sessionID string, round *models.Round) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordRound(ctx, sessionID, round); err != nil {
		c.logger.Warn("failed to record round", zap.Int("round", round.Number), zap.Error(err))
	}
}

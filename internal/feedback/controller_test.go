package feedback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/refine/internal/bigram"
	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/internal/rocchio"
	"github.com/hyperjump/refine/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	pages   [][]*models.Result
	errs    []error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]*models.Result, error) {
	i := len(f.queries)
	f.queries = append(f.queries, query)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	return f.pages[i], nil
}

// fakeJudge marks the URLs in relevant as relevant.
type fakeJudge struct {
	relevant map[string]bool
	failAt   int
	calls    int
}

func (f *fakeJudge) Judge(_ context.Context, rank int, r *models.Result) (bool, error) {
	f.calls++
	if f.failAt > 0 && rank == f.failAt {
		return false, errors.New("stdin closed")
	}
	return f.relevant[r.URL], nil
}

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*models.Page, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404", url)
	}
	return &models.Page{URL: url, ContentType: "text/html", Text: body}, nil
}

type recordingReporter struct {
	started  []string
	expanded [][]string
	stopped  *models.Outcome
}

func (r *recordingReporter) RoundStarted(_ int, q string) { r.started = append(r.started, q) }
func (r *recordingReporter) ResultsRetrieved(int, []*models.Document) {}
func (r *recordingReporter) RoundEvaluated(*models.Round) {}
func (r *recordingReporter) Stopped(o *models.Outcome) { r.stopped = o }
func (r *recordingReporter) QueryExpanded(_ int, _ *rocchio.Expansion, o []string) {
	r.expanded = append(r.expanded, o)
}

type memJournal struct {
	started  string
	rounds   []*models.Round
	finished *models.Outcome
}

func (j *memJournal) StartSession(_ context.Context, id, _ string, _ float64, _ time.Time) error {
	j.started = id
	return nil
}

func (j *memJournal) RecordRound(_ context.Context, _ string, r *models.Round) error {
	j.rounds = append(j.rounds, r)
	return nil
}

func (j *memJournal) FinishSession(_ context.Context, o *models.Outcome) error {
	j.finished = o
	return nil
}

func newTokenizer(t *testing.T) *text.Tokenizer {
	t.Helper()
	tok, err := text.NewTokenizer()
	require.NoError(t, err)
	return tok
}

// milkyWayPage is nine galaxy pages and one chocolate bar page at rank 10.
func milkyWayPage() []*models.Result {
	results := make([]*models.Result, 0, 10)
	for i := 1; i <= 9; i++ {
		results = append(results, &models.Result{
			Title:   "Galaxy guide",
			URL:     fmt.Sprintf("https://astro.example.com/galaxy/%d", i),
			Snippet: "The galaxy and its stars",
		})
	}
	return append(results, &models.Result{
		Title:   "Milky Way",
		URL:     "https://candy.example.com/milky-way",
		Snippet: "Chocolate bars",
	})
}

func TestController_milkyWay(t *testing.T) {
	search := &fakeSearch{pages: [][]*models.Result{milkyWayPage()}}
	judge := &fakeJudge{relevant: map[string]bool{"https://candy.example.com/milky-way": true}}
	rep := &recordingReporter{}
	journal := &memJournal{}
	table := bigram.NewTable(map[bigram.Pair]int{{First: "chocolate", Second: "bars"}: 7})

	c := NewController(search, judge, newTokenizer(t),
		Config{TargetPrecision: 0.9, TextSource: TextSourceSnippet},
		WithOrderer(table), WithReporter(rep), WithJournal(journal))
	out, err := c.Run(context.Background(), `"milky way"`)
	require.NoError(t, err)

	require.Len(t, out.Rounds, 2)
	first := out.Rounds[0]
	assert.Equal(t, "milky way", first.Query)
	assert.InDelta(t, 0.1, first.Precision, 1e-9)
	assert.Equal(t, 10, first.Indexable)
	assert.Equal(t, 1, first.Relevant)
	assert.Equal(t, []string{"chocolate", "bars"}, first.AddedTerms)

	// Every term of the only relevant page is now in the query.
	assert.Equal(t, models.StopNoNewTerms, out.Reason)
	assert.Equal(t, "milky way chocolate bars", out.FinalQuery)
	assert.Equal(t, []string{"milky way", "milky way chocolate bars"}, search.queries)
	assert.Nil(t, out.Rounds[1].AddedTerms)

	assert.Equal(t, [][]string{{"chocolate", "bars"}}, rep.expanded)
	assert.Same(t, out, rep.stopped)
	assert.Equal(t, out.SessionID, journal.started)
	assert.Len(t, journal.rounds, 2)
	assert.Same(t, out, journal.finished)
}

func TestController_rocchioOrderWithoutBigrams(t *testing.T) {
	search := &fakeSearch{pages: [][]*models.Result{milkyWayPage()}}
	judge := &fakeJudge{relevant: map[string]bool{"https://candy.example.com/milky-way": true}}
	c := NewController(search, judge, newTokenizer(t), Config{TargetPrecision: 0.9, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	// Equal scores fall back to lexical order.
	assert.Equal(t, []string{"bars", "chocolate"}, out.Rounds[0].AddedTerms)
}

func TestController_hyphenatedSeedTermsNotReAdded(t *testing.T) {
	search := &fakeSearch{pages: [][]*models.Result{milkyWayPage()}}
	judge := &fakeJudge{relevant: map[string]bool{"https://candy.example.com/milky-way": true}}
	c := NewController(search, judge, newTokenizer(t), Config{TargetPrecision: 0.9, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "Milky-Way")
	require.NoError(t, err)
	require.Len(t, out.Rounds, 2)
	assert.Equal(t, []string{"bars", "chocolate"}, out.Rounds[0].AddedTerms)
	assert.Equal(t, models.StopNoNewTerms, out.Reason)
	assert.Equal(t, "Milky-Way bars chocolate", out.FinalQuery)
}

func TestController_targetReachedExactly(t *testing.T) {
	page := milkyWayPage()
	relevant := map[string]bool{}
	for _, r := range page[:9] {
		relevant[r.URL] = true
	}
	c := NewController(&fakeSearch{pages: [][]*models.Result{page}}, &fakeJudge{relevant: relevant},
		newTokenizer(t), Config{TargetPrecision: 0.9, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopTargetReached, out.Reason)
	assert.Equal(t, 0.9, out.LastRound().Precision)
	assert.Equal(t, "milky way", out.FinalQuery)
	assert.Empty(t, out.LastRound().AddedTerms)
}

func TestController_insufficientFirstRound(t *testing.T) {
	judge := &fakeJudge{}
	rep := &recordingReporter{}
	c := NewController(&fakeSearch{pages: [][]*models.Result{milkyWayPage()[:7]}}, judge,
		newTokenizer(t), Config{TargetPrecision: 0.1}, WithReporter(rep))

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopInsufficientResults, out.Reason)
	assert.Empty(t, out.Rounds)
	assert.Zero(t, judge.calls)
	assert.Equal(t, "milky way", out.FinalQuery)
	assert.Same(t, out, rep.stopped)
}

func TestController_searchErrorFirstRound(t *testing.T) {
	search := &fakeSearch{pages: [][]*models.Result{nil}, errs: []error{errors.New("quota exceeded")}}
	c := NewController(search, &fakeJudge{}, newTokenizer(t), Config{TargetPrecision: 0.5})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopInsufficientResults, out.Reason)
}

func TestController_noResultsLaterRound(t *testing.T) {
	search := &fakeSearch{
		pages: [][]*models.Result{milkyWayPage(), nil},
		errs:  []error{nil, errors.New("connection reset")},
	}
	judge := &fakeJudge{relevant: map[string]bool{"https://candy.example.com/milky-way": true}}
	c := NewController(search, judge, newTokenizer(t), Config{TargetPrecision: 0.9, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopNoResults, out.Reason)
	assert.Len(t, out.Rounds, 1)
	assert.Equal(t, "milky way bars chocolate", out.FinalQuery)
}

func TestController_zeroPrecision(t *testing.T) {
	c := NewController(&fakeSearch{pages: [][]*models.Result{milkyWayPage()}}, &fakeJudge{},
		newTokenizer(t), Config{TargetPrecision: 0.5, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopNoRelevant, out.Reason)
	assert.Equal(t, "milky way", out.FinalQuery)
}

func TestController_nonHTMLExcludedFromPrecision(t *testing.T) {
	page := milkyWayPage()
	for _, r := range page[:9] {
		r.URL += ".pdf"
	}
	judge := &fakeJudge{relevant: map[string]bool{
		"https://candy.example.com/milky-way": true,
		page[0].URL:                           true,
	}}
	c := NewController(&fakeSearch{pages: [][]*models.Result{page}}, judge,
		newTokenizer(t), Config{TargetPrecision: 1, TextSource: TextSourceSnippet})

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, models.StopTargetReached, out.Reason)
	round := out.LastRound()
	assert.Equal(t, 1, round.Indexable)
	assert.Equal(t, 1.0, round.Precision)
	assert.Equal(t, 10, judge.calls, "non-HTML results are still judged")
	assert.False(t, round.Judgments[0].Document.HTML)
}

func TestController_fullTextFetchFailureExcluded(t *testing.T) {
	page := milkyWayPage()
	pages := map[string]string{"https://candy.example.com/milky-way": "Chocolate bars with nougat and caramel."}
	for _, r := range page[1:9] {
		pages[r.URL] = "The galaxy seen from a dark site"
	}
	// page[0] fails to fetch and is judged relevant; it must not count.
	judge := &fakeJudge{relevant: map[string]bool{
		"https://candy.example.com/milky-way": true,
		page[0].URL:                           true,
	}}
	c := NewController(&fakeSearch{pages: [][]*models.Result{page}}, judge, newTokenizer(t),
		Config{TargetPrecision: 0.9, MaxRounds: 1}, WithFetcher(&fakeFetcher{pages: pages}))

	out, err := c.Run(context.Background(), "milky way")
	require.NoError(t, err)
	round := out.LastRound()
	assert.Equal(t, 9, round.Indexable)
	assert.Equal(t, 1, round.Relevant)
	assert.False(t, round.Judgments[0].Document.Indexable)
	assert.Contains(t, round.Judgments[9].Document.Text, "nougat")
	assert.Equal(t, models.StopMaxRounds, out.Reason)
	assert.Equal(t, "milky way", out.FinalQuery)
}

func TestController_judgeErrorAborts(t *testing.T) {
	journal := &memJournal{}
	c := NewController(&fakeSearch{pages: [][]*models.Result{milkyWayPage()}}, &fakeJudge{failAt: 3},
		newTokenizer(t), Config{TargetPrecision: 0.5}, WithJournal(journal))

	out, err := c.Run(context.Background(), "milky way")
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Equal(t, models.StopNone, out.Reason)
	assert.Empty(t, out.Rounds)
	assert.Same(t, out, journal.finished)
}

func TestController_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewController(&fakeSearch{pages: [][]*models.Result{milkyWayPage()}}, &fakeJudge{},
		newTokenizer(t), Config{TargetPrecision: 0.5})

	_, err := c.Run(ctx, "milky way")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestController_emptyQuery(t *testing.T) {
	c := NewController(&fakeSearch{}, &fakeJudge{}, newTokenizer(t), Config{TargetPrecision: 0.5})
	_, err := c.Run(context.Background(), `  ""  `)
	assert.Error(t, err)
}

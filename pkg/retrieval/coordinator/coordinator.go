package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ai-docqa-be/pkg/retrieval/pool"
	"ai-docqa-be/pkg/retrieval/session"
	"ai-docqa-be/pkg/store"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is the per-document outcome error for a session that outlived
// its deadline.
var ErrTimeout = errors.New("retrieval timed out")

// Candidate is one target document, optionally carrying the relevance score
// and reason that selected it.
type Candidate struct {
	DocumentID string
	Score      float32
	Reason     string
}

// SourceMetadata echoes why a document was searched.
type SourceMetadata struct {
	SimilarityScore float32 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// Outcome is one document's entry in the aggregated result map. Err is set
// instead of the answer fields when the session timed out or failed.
type Outcome struct {
	FinalAnswer      string
	IsComplete       bool
	CompletionReason string
	Accumulated      []store.Accumulated
	Source           SourceMetadata
	UsedQuery        string
	Err              error
}

// Options bounds one multi-document run.
type Options struct {
	MaxIterations    int
	ConcurrencyLimit int
	PerDocTimeout    time.Duration
	Mode             store.RetrievalMode
}

// Coordinator fans one query out over many documents, one pooled session
// each, bounded by a counting semaphore and per-document deadlines. A single
// document's failure never fails the call.
type Coordinator struct {
	runner *session.Runner
	pool   *pool.Pool
	logger *log.Logger
}

func New(runner *session.Runner, p *pool.Pool, logger *log.Logger) *Coordinator {
	return &Coordinator{
		runner: runner,
		pool:   p,
		logger: logger,
	}
}

// RunMultiDocument runs one retrieval session per candidate document and
// returns the outcome map keyed by document id. Per-document rewritten
// queries override the original query where present.
func (c *Coordinator) RunMultiDocument(
	ctx context.Context,
	query string,
	documents []Candidate,
	rewrittenQueries map[string]string,
	opts Options,
) (map[string]Outcome, error) {

	if query == "" {
		return nil, fmt.Errorf("coordinator: empty query")
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("coordinator: no documents")
	}
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("coordinator: non-positive maxIterations: %d", opts.MaxIterations)
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 3
	}
	if opts.PerDocTimeout <= 0 {
		opts.PerDocTimeout = 120 * time.Second
	}
	mode := opts.Mode
	if mode == "" {
		mode = store.ModeCrossAuto
	}

	c.logger.Printf("[COORD] Fan-out: %d documents, limit=%d, timeout=%s",
		len(documents), opts.ConcurrencyLimit, opts.PerDocTimeout)

	sem := semaphore.NewWeighted(int64(opts.ConcurrencyLimit))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[string]Outcome, len(documents))
	)

	for _, doc := range documents {
		usedQuery := query
		if rewritten, ok := rewrittenQueries[doc.DocumentID]; ok && rewritten != "" {
			usedQuery = rewritten
		}

		wg.Add(1)
		go func(doc Candidate, usedQuery string) {
			defer wg.Done()

			outcome := c.runOne(ctx, sem, doc, usedQuery, mode, opts)

			mu.Lock()
			outcomes[doc.DocumentID] = outcome
			mu.Unlock()
		}(doc, usedQuery)
	}

	wg.Wait()
	return outcomes, nil
}

// runOne executes a single document's session under the shared semaphore and
// its own deadline. Panics and errors become error outcomes; the pooled
// context's turn counter advances exactly once per attempt either way, so the
// next turn computes rewrite-skip eligibility correctly.
func (c *Coordinator) runOne(
	ctx context.Context,
	sem *semaphore.Weighted,
	doc Candidate,
	usedQuery string,
	mode store.RetrievalMode,
	opts Options,
) (outcome Outcome) {

	outcome = Outcome{
		Source:    SourceMetadata{SimilarityScore: doc.Score, Reason: doc.Reason},
		UsedQuery: usedQuery,
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Printf("[COORD] Session for %s panicked: %v", doc.DocumentID, rec)
			outcome.Err = fmt.Errorf("session panic: %v", rec)
		}
		c.pool.Get(doc.DocumentID).IncrementTurn()
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		outcome.Err = err
		return outcome
	}
	defer sem.Release(1)

	docCtx, cancel := context.WithTimeout(ctx, opts.PerDocTimeout)
	defer cancel()

	turn := c.pool.Get(doc.DocumentID).Turn()

	result, err := c.runner.Run(docCtx, session.Request{
		Query:            usedQuery,
		DocumentID:       doc.DocumentID,
		MaxIterations:    opts.MaxIterations,
		ConversationTurn: turn,
		Mode:             mode,
	})

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.logger.Printf("[COORD] Document %s timed out after %s", doc.DocumentID, opts.PerDocTimeout)
		outcome.Err = ErrTimeout
	case err != nil:
		c.logger.Printf("[COORD] Document %s failed: %v", doc.DocumentID, err)
		outcome.Err = err
	default:
		outcome.FinalAnswer = result.FinalAnswer
		outcome.IsComplete = result.IsComplete
		outcome.CompletionReason = result.CompletionReason
		outcome.Accumulated = result.Accumulated
		outcome.UsedQuery = result.UsedQuery
	}
	return outcome
}

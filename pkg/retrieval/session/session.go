package session

import (
	"context"
	"fmt"
	"log"

	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/retrieval/pool"
	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"

	"github.com/google/uuid"
)

// Session is one query/document execution of the retrieval loop.
//
// Actions, Observations and Iteration cover the current turn only; history
// restored from the pool is kept in PriorActions/PriorObservations so the
// per-turn invariant len(Actions) == len(Observations) == Iteration holds at
// every evaluation.
type Session struct {
	Query          string
	RewrittenQuery string

	DocumentID       string
	ConversationTurn int
	Iteration        int
	MaxIterations    int
	Mode             store.RetrievalMode

	Actions      []store.Action
	Observations []string
	Accumulated  []store.Accumulated

	PriorActions      []store.Action
	PriorObservations []string
	PriorSummary      string

	IsComplete       bool
	CompletionReason string
	FinalAnswer      string

	id             string // LLM session id, shared by every call of this session
	lastEvalReason string
}

// Request carries the caller-facing parameters of one session run.
type Request struct {
	Query            string
	DocumentID       string
	MaxIterations    int
	ConversationTurn int
	Mode             store.RetrievalMode
}

// Result is what a finished session reports.
type Result struct {
	FinalAnswer      string
	IsComplete       bool
	CompletionReason string
	Accumulated      []store.Accumulated
	UsedQuery        string
}

// Config tunes the runner; zero values fall back to defaults.
type Config struct {
	HistoryWindow int // persisted-state trim window
	TopK          int // semantic search fan-out
}

// Runner executes retrieval sessions against pooled document contexts.
type Runner struct {
	registry   *tool.Registry
	inferencer llm.Inferencer
	pool       *pool.Pool
	cfg        Config
	logger     *log.Logger
}

func NewRunner(registry *tool.Registry, inferencer llm.Inferencer, p *pool.Pool, cfg Config, logger *log.Logger) *Runner {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Runner{
		registry:   registry,
		inferencer: inferencer,
		pool:       p,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes the full loop for one query against one document:
// INIT -> REWRITE -> THINK -> ACT -> ACCUMULATE -> EVALUATE -> (REWRITE | FORMAT) -> DONE.
//
// Invalid input surfaces as an error; everything originating in external
// services degrades inside the loop instead.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	// INIT
	if req.Query == "" {
		return nil, fmt.Errorf("session init: empty query")
	}
	if req.MaxIterations <= 0 {
		return nil, fmt.Errorf("session init: non-positive maxIterations: %d", req.MaxIterations)
	}
	if req.DocumentID == "" {
		return nil, fmt.Errorf("session init: empty documentId")
	}
	mode := req.Mode
	if mode == "" {
		mode = store.ModeSingle
	}

	dc := r.pool.Acquire(req.DocumentID)
	defer r.pool.Release(dc)

	s := &Session{
		Query:            req.Query,
		RewrittenQuery:   req.Query,
		DocumentID:       req.DocumentID,
		ConversationTurn: req.ConversationTurn,
		MaxIterations:    req.MaxIterations,
		Mode:             mode,
		id:               fmt.Sprintf("%s-%s", req.DocumentID, uuid.New().String()[:8]),
	}

	if persisted := dc.Restore(mode, r.cfg.HistoryWindow); persisted != nil {
		s.PriorActions = persisted.Actions
		s.PriorObservations = persisted.Observations
		s.Accumulated = persisted.Accumulated
		s.PriorSummary = persisted.Summary
		r.logger.Printf("[SESSION] Restored state for %s: %d prior actions, %d accumulated",
			req.DocumentID, len(s.PriorActions), len(s.Accumulated))
	}

	executor := tool.NewExecutor(r.registry, dc.Store, dc, r.inferencer, s.id, r.cfg.TopK, r.logger)

	r.logger.Printf("[SESSION] Start doc=%s turn=%d budget=%d query=%q",
		s.DocumentID, s.ConversationTurn, s.MaxIterations, truncate(s.Query, 60))

	// Loop
	for s.Iteration < s.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// REWRITE: pass-through only on the very first cycle of the very
		// first turn.
		if !(s.ConversationTurn == 0 && s.Iteration == 0) {
			s.RewrittenQuery = r.rewrite(ctx, s)
		}

		// THINK
		action := r.think(ctx, s)

		// ACT: a tool failure degrades to an empty envelope; the observation
		// of "no new content" steers the next think away from it.
		env, err := executor.Execute(ctx, action)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Printf("[ACT] Tool %s failed, degrading to empty result: %v", action.Tool, err)
			env = executor.EmptyEnvelope(action.Tool)
		}
		s.Actions = append(s.Actions, action)

		// ACCUMULATE
		observation := s.accumulate(env)
		s.Observations = append(s.Observations, observation)
		r.logger.Printf("[ACCUMULATE] iter=%d tool=%s: %s", s.Iteration, action.Tool, observation)

		s.Iteration++

		// EVALUATE
		complete, reason := r.evaluate(ctx, s)
		s.lastEvalReason = reason
		if complete {
			s.IsComplete = true
			s.CompletionReason = reason
			break
		}
		s.CompletionReason = reason
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// FORMAT
	r.synthesize(ctx, s)

	// Write the trimmed final state back for the next turn. Skipped on
	// cancellation above, so a timed-out attempt leaves the pooled context
	// untouched.
	dc.Snapshot(&store.PersistedState{
		Mode:         mode,
		Actions:      append(append([]store.Action{}, s.PriorActions...), s.Actions...),
		Observations: append(append([]string{}, s.PriorObservations...), s.Observations...),
		Accumulated:  s.Accumulated,
		Summary:      compactSummary(s.Accumulated),
	}, r.cfg.HistoryWindow)

	r.logger.Printf("[SESSION] Done doc=%s complete=%v iterations=%d accumulated=%d",
		s.DocumentID, s.IsComplete, s.Iteration, len(s.Accumulated))

	return &Result{
		FinalAnswer:      s.FinalAnswer,
		IsComplete:       s.IsComplete,
		CompletionReason: s.CompletionReason,
		Accumulated:      s.Accumulated,
		UsedQuery:        s.RewrittenQuery,
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

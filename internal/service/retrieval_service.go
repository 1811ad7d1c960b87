package service

import (
	"context"
	"strconv"
	"time"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/retrieval/coordinator"
	"ai-docqa-be/pkg/retrieval/pool"
	"ai-docqa-be/pkg/retrieval/session"
	"ai-docqa-be/pkg/store"
)

type IRetrievalService interface {
	RunSession(ctx context.Context, req *dto.RunSessionRequest) (*dto.RunSessionResponse, error)
	RunMulti(ctx context.Context, req *dto.RunMultiRequest) (*dto.RunMultiResponse, error)
	EvictDocument(documentID string)
	Reset()
}

type retrievalService struct {
	runner      *session.Runner
	coordinator *coordinator.Coordinator
	pool        *pool.Pool
	cfg         *config.Config
	logger      logger.ILogger
}

func NewRetrievalService(
	runner *session.Runner,
	coord *coordinator.Coordinator,
	p *pool.Pool,
	cfg *config.Config,
	log logger.ILogger,
) IRetrievalService {
	return &retrievalService{
		runner:      runner,
		coordinator: coord,
		pool:        p,
		cfg:         cfg,
		logger:      log,
	}
}

func (s *retrievalService) RunSession(ctx context.Context, req *dto.RunSessionRequest) (*dto.RunSessionResponse, error) {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = s.cfg.Retrieval.MaxIterations
	}

	s.logger.Info("retrieval", "Running single-document session", map[string]interface{}{
		"document_id":    req.DocumentID,
		"max_iterations": maxIterations,
	})

	result, err := s.runner.Run(ctx, session.Request{
		Query:            req.Query,
		DocumentID:       req.DocumentID,
		MaxIterations:    maxIterations,
		ConversationTurn: req.ConversationTurn,
		Mode:             store.ModeSingle,
	})
	if err != nil {
		s.logger.Error("retrieval", "Session failed", map[string]interface{}{
			"document_id": req.DocumentID,
			"error":       err.Error(),
		})
		return nil, err
	}

	// One attempt, one turn.
	s.pool.Get(req.DocumentID).IncrementTurn()

	return &dto.RunSessionResponse{
		FinalAnswer:      result.FinalAnswer,
		IsComplete:       result.IsComplete,
		CompletionReason: result.CompletionReason,
		UsedQuery:        result.UsedQuery,
		Sources:          toAccumulatedDTOs(result.Accumulated),
	}, nil
}

func (s *retrievalService) RunMulti(ctx context.Context, req *dto.RunMultiRequest) (*dto.RunMultiResponse, error) {
	opts := coordinator.Options{
		MaxIterations:    req.MaxIterations,
		ConcurrencyLimit: req.ConcurrencyLimit,
		PerDocTimeout:    time.Duration(req.TimeoutSeconds) * time.Second,
		Mode:             store.ModeCrossAuto,
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = s.cfg.Retrieval.MaxIterations
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = s.cfg.Retrieval.ConcurrencyLimit
	}
	if opts.PerDocTimeout <= 0 {
		opts.PerDocTimeout = time.Duration(s.cfg.Retrieval.PerDocTimeoutSeconds) * time.Second
	}
	if req.Manual {
		opts.Mode = store.ModeCrossManual
	}

	documents := make([]coordinator.Candidate, len(req.Documents))
	for i, d := range req.Documents {
		documents[i] = coordinator.Candidate{
			DocumentID: d.DocumentID,
			Score:      d.Score,
			Reason:     d.Reason,
		}
	}

	s.logger.Info("retrieval", "Running multi-document retrieval", map[string]interface{}{
		"documents":   len(documents),
		"concurrency": opts.ConcurrencyLimit,
	})

	outcomes, err := s.coordinator.RunMultiDocument(ctx, req.Query, documents, req.RewrittenQueries, opts)
	if err != nil {
		return nil, err
	}

	// Report in the caller-supplied document order.
	res := &dto.RunMultiResponse{}
	for _, d := range req.Documents {
		outcome := outcomes[d.DocumentID]
		entry := dto.DocumentOutcomeDTO{
			DocumentID:       d.DocumentID,
			FinalAnswer:      outcome.FinalAnswer,
			IsComplete:       outcome.IsComplete,
			CompletionReason: outcome.CompletionReason,
			UsedQuery:        outcome.UsedQuery,
			SimilarityScore:  outcome.Source.SimilarityScore,
			SourceReason:     outcome.Source.Reason,
			Sources:          toAccumulatedDTOs(outcome.Accumulated),
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		}
		res.Outcomes = append(res.Outcomes, entry)
	}
	return res, nil
}

func (s *retrievalService) EvictDocument(documentID string) {
	s.pool.Evict(documentID)
	s.logger.Info("retrieval", "Evicted document context", map[string]interface{}{
		"document_id": documentID,
	})
}

func (s *retrievalService) Reset() {
	s.pool.EvictAll()
	s.logger.Info("retrieval", "Reset all document contexts", nil)
}

func toAccumulatedDTOs(items []store.Accumulated) []dto.AccumulatedItemDTO {
	var out []dto.AccumulatedItemDTO
	for _, item := range items {
		switch item.Kind {
		case store.KindContent:
			if item.Fragment == nil {
				continue
			}
			out = append(out, dto.AccumulatedItemDTO{
				Kind:  item.Kind,
				Title: item.Fragment.Title,
				Pages: pagesLabel(item.Fragment.PageRefs),
			})
		case store.KindStructure:
			out = append(out, dto.AccumulatedItemDTO{
				Kind:     item.Kind,
				ToolName: item.ToolName,
				Entries:  len(item.Entries),
			})
		}
	}
	return out
}

func pagesLabel(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	min, max := pages[0], pages[0]
	for _, p := range pages[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min == max {
		return strconv.Itoa(min)
	}
	return strconv.Itoa(min) + "-" + strconv.Itoa(max)
}

package dto

// RunSessionRequest invokes one retrieval session against one document.
type RunSessionRequest struct {
	Query            string `json:"query" validate:"required"`
	DocumentID       string `json:"document_id" validate:"required"`
	MaxIterations    int    `json:"max_iterations" validate:"omitempty,min=1,max=20"`
	ConversationTurn int    `json:"conversation_turn" validate:"omitempty,min=0"`
}

// RunSessionResponse is the outcome of a single-document session.
type RunSessionResponse struct {
	FinalAnswer      string               `json:"final_answer"`
	IsComplete       bool                 `json:"is_complete"`
	CompletionReason string               `json:"completion_reason"`
	UsedQuery        string               `json:"used_query"`
	Sources          []AccumulatedItemDTO `json:"sources"`
}

// DocumentCandidateDTO is one target document of a multi-document run.
type DocumentCandidateDTO struct {
	DocumentID string  `json:"document_id" validate:"required"`
	Score      float32 `json:"score"`
	Reason     string  `json:"reason"`
}

// RunMultiRequest fans one query out over several documents.
type RunMultiRequest struct {
	Query            string                 `json:"query" validate:"required"`
	Documents        []DocumentCandidateDTO `json:"documents" validate:"required,min=1,dive"`
	RewrittenQueries map[string]string      `json:"rewritten_queries"`
	MaxIterations    int                    `json:"max_iterations" validate:"omitempty,min=1,max=20"`
	ConcurrencyLimit int                    `json:"concurrency_limit" validate:"omitempty,min=1,max=32"`
	TimeoutSeconds   int                    `json:"timeout_seconds" validate:"omitempty,min=1"`
	Manual           bool                   `json:"manual"` // caller picked the documents themselves
}

// DocumentOutcomeDTO is one document's entry in a multi-document response.
type DocumentOutcomeDTO struct {
	DocumentID       string               `json:"document_id"`
	FinalAnswer      string               `json:"final_answer,omitempty"`
	IsComplete       bool                 `json:"is_complete"`
	CompletionReason string               `json:"completion_reason,omitempty"`
	UsedQuery        string               `json:"used_query"`
	SimilarityScore  float32              `json:"similarity_score"`
	SourceReason     string               `json:"source_reason,omitempty"`
	Sources          []AccumulatedItemDTO `json:"sources,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// RunMultiResponse lists outcomes in the caller-supplied document order.
type RunMultiResponse struct {
	Outcomes []DocumentOutcomeDTO `json:"outcomes"`
}

// AccumulatedItemDTO is a compact view of one accumulated item.
type AccumulatedItemDTO struct {
	Kind     string `json:"kind"`
	Title    string `json:"title,omitempty"`
	Pages    string `json:"pages,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	Entries  int    `json:"entries,omitempty"`
}

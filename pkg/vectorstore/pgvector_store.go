package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgVectorStore implements Store on top of pgvector via GORM. All queries are
// scoped to a single document id.
type PgVectorStore struct {
	db                *gorm.DB
	embeddingProvider embedding.EmbeddingProvider
	documentID        string
	threshold         float64
}

// DefaultSimilarityThreshold drops weak matches before they reach the session
// loop. Matches the retrieval threshold used for chunk filtering.
const DefaultSimilarityThreshold = 0.35

func NewPgVectorStore(db *gorm.DB, embeddingProvider embedding.EmbeddingProvider, documentID string) *PgVectorStore {
	return &PgVectorStore{
		db:                db,
		embeddingProvider: embeddingProvider,
		documentID:        documentID,
		threshold:         DefaultSimilarityThreshold,
	}
}

// NewFactory returns a Factory that scopes stores to a document id.
func NewFactory(db *gorm.DB, embeddingProvider embedding.EmbeddingProvider) Factory {
	return func(documentID string) Store {
		return NewPgVectorStore(db, embeddingProvider, documentID)
	}
}

func (s *PgVectorStore) Search(ctx context.Context, query string, topK int, filter Filter, dedup bool) ([]store.Fragment, error) {
	if topK <= 0 {
		topK = 5
	}

	embeddingRes, err := s.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	queryVector := pgvector.NewVector(embeddingRes.Embedding.Values)

	// Cosine distance in pgvector is 1 - cosine_similarity, so we select
	// 1 - (embedding_value <=> query) as the similarity score.
	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	q := s.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("document_chunks.document_id = ?", s.documentID).
		Where("document_chunks.deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, s.threshold)

	if filter.ChapterType != "" {
		q = q.Where("document_chunks.chapter_type = ?", filter.ChapterType)
	}

	if err := q.Order("similarity DESC").Limit(topK).Scan(&results).Error; err != nil {
		return nil, err
	}

	var fragments []store.Fragment
	seen := make(map[string]bool)
	for _, res := range results {
		if dedup && seen[res.Content] {
			continue
		}
		seen[res.Content] = true
		fragments = append(fragments, chunkToFragment(&res.DocumentChunk, float32(res.Similarity)))
	}
	return fragments, nil
}

func (s *PgVectorStore) SearchByTitle(ctx context.Context, title string, typeFilter string, dedup bool) ([]store.Fragment, error) {
	var chunks []*model.DocumentChunk

	q := s.db.WithContext(ctx).
		Where("document_id = ?", s.documentID).
		Where("title = ?", title)
	if typeFilter != "" {
		q = q.Where("chapter_type = ?", typeFilter)
	}
	if err := q.Order("page_start ASC").Find(&chunks).Error; err != nil {
		return nil, err
	}

	var fragments []store.Fragment
	seen := make(map[string]bool)
	for _, c := range chunks {
		if dedup && seen[c.Content] {
			continue
		}
		seen[c.Content] = true
		fragments = append(fragments, chunkToFragment(c, 1.0))
	}
	return fragments, nil
}

func (s *PgVectorStore) Structure(ctx context.Context) ([]store.StructureEntry, error) {
	type row struct {
		Title     string
		PageStart int
		PageEnd   int
	}
	var rows []row

	err := s.db.WithContext(ctx).
		Table("document_chunks").
		Select("title, MIN(page_start) as page_start, MAX(page_end) as page_end").
		Where("document_id = ?", s.documentID).
		Where("deleted_at IS NULL").
		Group("title").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]store.StructureEntry, len(rows))
	for i, r := range rows {
		entries[i] = store.StructureEntry{Title: r.Title, PageStart: r.PageStart, PageEnd: r.PageEnd}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PageStart < entries[j].PageStart })
	return entries, nil
}

func chunkToFragment(c *model.DocumentChunk, score float32) store.Fragment {
	pageData := make(map[string]string, len(c.PageData))
	for k, v := range c.PageData {
		if s, ok := v.(string); ok {
			pageData[k] = s
		}
	}

	var pageRefs []int
	for p := c.PageStart; p <= c.PageEnd; p++ {
		pageRefs = append(pageRefs, p)
	}

	return store.Fragment{
		Text:     c.Content,
		Title:    c.Title,
		PageRefs: pageRefs,
		PageData: pageData,
		Score:    score,
	}
}

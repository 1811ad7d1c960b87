package vectorstore

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/pkg/database"
	"ai-docqa-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// axisProvider returns a fixed 768-dim unit vector per registered text, so
// cosine similarity between query and chunk is exactly 1 for a match and 0
// otherwise. Keeps the test independent of a live embedding backend.
type axisProvider struct {
	axes map[string]int
}

func (p *axisProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	values := make([]float32, 768)
	if axis, ok := p.axes[text]; ok {
		values[axis] = 1
	} else {
		values[767] = 1
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

func testDB(t *testing.T) *gorm.DB {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	require.NoError(t, gormDB.AutoMigrate(&model.DocumentChunk{}))
	return gormDB
}

func axisVector(axis int) pgvector.Vector {
	values := make([]float32, 768)
	values[axis] = 1
	return pgvector.NewVector(values)
}

func TestPgVectorStoreIntegration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	documentID := uuid.New().String()
	otherDocumentID := uuid.New().String()

	chunks := []*model.DocumentChunk{
		{
			DocumentID:     documentID,
			Title:          "1. Introduction",
			ChapterType:    "body",
			Content:        "This paper introduces the model.",
			PageStart:      1,
			PageEnd:        2,
			PageData:       datatypes.JSONMap{"1": "intro page one"},
			EmbeddingValue: axisVector(0),
		},
		{
			DocumentID:     documentID,
			Title:          "3. Training Setup",
			ChapterType:    "body",
			Content:        "Training uses the AdamW optimizer.",
			PageStart:      7,
			PageEnd:        8,
			PageData:       datatypes.JSONMap{"7": "training page seven"},
			EmbeddingValue: axisVector(1),
		},
		{
			DocumentID:     documentID,
			Title:          "3. Training Setup",
			ChapterType:    "body",
			Content:        "Learning rate follows a cosine schedule.",
			PageStart:      9,
			PageEnd:        9,
			PageData:       datatypes.JSONMap{"9": "training page nine"},
			EmbeddingValue: axisVector(2),
		},
		{
			DocumentID:     otherDocumentID,
			Title:          "3. Training Setup",
			ChapterType:    "body",
			Content:        "Chunk from an unrelated document.",
			PageStart:      7,
			PageEnd:        8,
			EmbeddingValue: axisVector(1),
		},
	}
	require.NoError(t, db.Create(&chunks).Error)
	t.Cleanup(func() {
		db.Unscoped().Where("document_id IN ?", []string{documentID, otherDocumentID}).
			Delete(&model.DocumentChunk{})
	})

	provider := &axisProvider{axes: map[string]int{
		"what optimizer is used?": 1,
	}}
	s := NewPgVectorStore(db, provider, documentID)

	t.Run("Search scopes to document and applies threshold", func(t *testing.T) {
		fragments, err := s.Search(ctx, "what optimizer is used?", 5, Filter{}, true)
		require.NoError(t, err)
		require.Len(t, fragments, 1, "orthogonal and foreign-document chunks are filtered out")

		assert.Equal(t, "Training uses the AdamW optimizer.", fragments[0].Text)
		assert.Equal(t, "3. Training Setup", fragments[0].Title)
		assert.Equal(t, []int{7, 8}, fragments[0].PageRefs)
		assert.Equal(t, "training page seven", fragments[0].PageData["7"])
		assert.InDelta(t, 1.0, fragments[0].Score, 0.01)
	})

	t.Run("SearchByTitle returns page-ordered chunks", func(t *testing.T) {
		fragments, err := s.SearchByTitle(ctx, "3. Training Setup", "", true)
		require.NoError(t, err)
		require.Len(t, fragments, 2, "stays inside the scoped document")
		assert.Equal(t, 7, fragments[0].PageRefs[0])
		assert.Equal(t, 9, fragments[1].PageRefs[0])
	})

	t.Run("Structure groups titles with page ranges", func(t *testing.T) {
		entries, err := s.Structure(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "1. Introduction", entries[0].Title)
		assert.Equal(t, "3. Training Setup", entries[1].Title)
		assert.Equal(t, 7, entries[1].PageStart)
		assert.Equal(t, 9, entries[1].PageEnd)
	})
}

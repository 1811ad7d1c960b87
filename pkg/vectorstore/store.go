package vectorstore

import (
	"context"

	"ai-docqa-be/pkg/store"
)

// Filter narrows a similarity search by chunk metadata
type Filter struct {
	ChapterType string // e.g. "body", "toc"; empty matches all
}

// Store is a similarity store scoped to one indexed document. Implementations
// own the document scoping; callers never pass a document id per call.
type Store interface {
	// Search returns ranked content fragments for a query. When dedup is set,
	// fragments whose text was already returned earlier in the same call are
	// dropped.
	Search(ctx context.Context, query string, topK int, filter Filter, dedup bool) ([]store.Fragment, error)

	// SearchByTitle returns all fragments whose chunk title matches exactly.
	SearchByTitle(ctx context.Context, title string, typeFilter string, dedup bool) ([]store.Fragment, error)

	// Structure returns the document's full chapter/title outline.
	Structure(ctx context.Context) ([]store.StructureEntry, error)
}

// Factory produces a Store handle scoped to one document. The pool calls it
// once per document and caches the handle for the process lifetime.
type Factory func(documentID string) Store

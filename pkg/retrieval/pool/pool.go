package pool

import (
	"log"
	"sync"

	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/patrickmn/go-cache"
)

// DocumentContext is the long-lived per-document state reused across
// conversation turns: the scoped vector-store handle, the title-exact lookup
// cache, the trimmed snapshot of the last session, and the turn counter.
//
// At most one session may hold a context at a time; callers go through
// Acquire/Release.
type DocumentContext struct {
	DocumentID string
	Store      vectorstore.Store

	mu         sync.Mutex // serializes sessions for this document
	cacheMu    sync.Mutex // guards titleCache and the turn counter
	titleCache map[string][]store.Fragment
	persisted  *store.PersistedState
	turn       int
}

// GetTitle implements the tool title cache.
func (c *DocumentContext) GetTitle(title string) ([]store.Fragment, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	fragments, ok := c.titleCache[title]
	return fragments, ok
}

// SetTitle implements the tool title cache.
func (c *DocumentContext) SetTitle(title string, fragments []store.Fragment) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.titleCache[title] = fragments
}

// Turn returns the conversation-turn counter for this document.
func (c *DocumentContext) Turn() int {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.turn
}

// IncrementTurn advances the conversation-turn counter. The coordinator calls
// it exactly once per completed attempt, including timed-out ones.
func (c *DocumentContext) IncrementTurn() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.turn++
}

// Snapshot writes back the trimmed final state of a session. The mode tags
// which retrieval strategy built the state.
func (c *DocumentContext) Snapshot(state *store.PersistedState, window int) {
	if state == nil {
		c.persisted = nil
		return
	}
	trimmed := trimState(state, window)
	c.persisted = trimmed
}

// Restore returns the persisted snapshot trimmed to the most recent window
// entries, or nil when the stored mode differs from the requested one.
// Context built for one retrieval strategy is not meaningful for another, so
// a mode change discards rather than merges.
func (c *DocumentContext) Restore(mode store.RetrievalMode, window int) *store.PersistedState {
	if c.persisted == nil {
		return nil
	}
	if c.persisted.Mode != mode {
		return nil
	}
	return trimState(c.persisted, window)
}

func trimState(state *store.PersistedState, window int) *store.PersistedState {
	trimmed := &store.PersistedState{
		Mode:    state.Mode,
		Summary: state.Summary,
	}
	trimmed.Actions = tail(state.Actions, window)
	trimmed.Observations = tailStrings(state.Observations, window)
	trimmed.Accumulated = tailAccumulated(state.Accumulated, window)
	return trimmed
}

func tail(s []store.Action, n int) []store.Action {
	if n <= 0 || len(s) <= n {
		return append([]store.Action{}, s...)
	}
	return append([]store.Action{}, s[len(s)-n:]...)
}

func tailStrings(s []string, n int) []string {
	if n <= 0 || len(s) <= n {
		return append([]string{}, s...)
	}
	return append([]string{}, s[len(s)-n:]...)
}

func tailAccumulated(s []store.Accumulated, n int) []store.Accumulated {
	if n <= 0 || len(s) <= n {
		return append([]store.Accumulated{}, s...)
	}
	return append([]store.Accumulated{}, s[len(s)-n:]...)
}

// Pool owns every DocumentContext, keyed by document id. Contexts live for
// the process lifetime or until explicit eviction.
type Pool struct {
	contexts *cache.Cache
	factory  vectorstore.Factory
	logger   *log.Logger

	mu sync.Mutex // serializes get-or-create
}

func New(factory vectorstore.Factory, logger *log.Logger) *Pool {
	return &Pool{
		contexts: cache.New(cache.NoExpiration, 0),
		factory:  factory,
		logger:   logger,
	}
}

// Get returns the pooled context for a document, creating it on first use.
func (p *Pool) Get(documentID string) *DocumentContext {
	p.mu.Lock()
	defer p.mu.Unlock()

	if x, found := p.contexts.Get(documentID); found {
		return x.(*DocumentContext)
	}

	dc := &DocumentContext{
		DocumentID: documentID,
		Store:      p.factory(documentID),
		titleCache: make(map[string][]store.Fragment),
	}
	p.contexts.Set(documentID, dc, cache.NoExpiration)
	p.logger.Printf("[POOL] Created context for document: %s", documentID)
	return dc
}

// Acquire returns the document's context with its session slot held. A second
// concurrent request for the same document queues here rather than getting an
// independent context, keeping the title cache warm.
func (p *Pool) Acquire(documentID string) *DocumentContext {
	dc := p.Get(documentID)
	dc.mu.Lock()
	return dc
}

// Release frees the document's session slot.
func (p *Pool) Release(dc *DocumentContext) {
	dc.mu.Unlock()
}

// Evict clears a single document's context: cache, persisted state and turn
// counter.
func (p *Pool) Evict(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contexts.Delete(documentID)
	p.logger.Printf("[POOL] Evicted context for document: %s", documentID)
}

// EvictAll resets the whole pool, used when the conversation is reset.
func (p *Pool) EvictAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contexts.Flush()
	p.logger.Printf("[POOL] Evicted all document contexts")
}

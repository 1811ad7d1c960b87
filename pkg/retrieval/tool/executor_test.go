package tool

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	searchFn func(query string, topK int) ([]store.Fragment, error)
	titleFn  func(title string) ([]store.Fragment, error)
	structFn func() ([]store.StructureEntry, error)

	titleCalls int
}

func (s *stubStore) Search(ctx context.Context, query string, topK int, _ vectorstore.Filter, _ bool) ([]store.Fragment, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(query, topK)
}

func (s *stubStore) SearchByTitle(ctx context.Context, title string, _ string, _ bool) ([]store.Fragment, error) {
	s.titleCalls++
	if s.titleFn == nil {
		return nil, nil
	}
	return s.titleFn(title)
}

func (s *stubStore) Structure(ctx context.Context) ([]store.StructureEntry, error) {
	if s.structFn == nil {
		return nil, nil
	}
	return s.structFn()
}

type mapTitleCache struct {
	entries map[string][]store.Fragment
}

func newMapTitleCache() *mapTitleCache {
	return &mapTitleCache{entries: make(map[string][]store.Fragment)}
}

func (c *mapTitleCache) GetTitle(title string) ([]store.Fragment, bool) {
	fragments, ok := c.entries[title]
	return fragments, ok
}

func (c *mapTitleCache) SetTitle(title string, fragments []store.Fragment) {
	c.entries[title] = fragments
}

type stubInferencer struct {
	response string
	err      error
}

func (s *stubInferencer) Invoke(ctx context.Context, role, prompt, sessionID string) (string, error) {
	return s.response, s.err
}

func newTestExecutor(st *stubStore, inferencer *stubInferencer) *Executor {
	return NewExecutor(NewRegistry(), st, newMapTitleCache(), inferencer, "sess-1", 5,
		log.New(io.Discard, "", 0))
}

func TestExecuteSemanticSearch(t *testing.T) {
	st := &stubStore{
		searchFn: func(query string, topK int) ([]store.Fragment, error) {
			assert.Equal(t, "adamw settings", query)
			assert.Equal(t, 5, topK)
			return []store.Fragment{{Text: "body", Title: "s"}}, nil
		},
	}
	e := newTestExecutor(st, &stubInferencer{})

	def, err := NewRegistry().Get(SemanticSearch)
	require.NoError(t, err)

	env, err := e.Execute(context.Background(), def.Call("adamw settings"))
	require.NoError(t, err)
	assert.Equal(t, store.KindContent, env.Kind)
	assert.Equal(t, SemanticSearch, env.ToolName)
	assert.Len(t, env.Contents, 1)
}

func TestExecuteUnknownTool(t *testing.T) {
	e := newTestExecutor(&stubStore{}, &stubInferencer{})

	_, err := e.Execute(context.Background(), store.Action{Tool: "grep"})
	assert.Error(t, err)
}

func TestExecuteStoreFailureSurfaces(t *testing.T) {
	st := &stubStore{
		searchFn: func(string, int) ([]store.Fragment, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	e := newTestExecutor(st, &stubInferencer{})

	def, _ := NewRegistry().Get(SemanticSearch)
	_, err := e.Execute(context.Background(), def.Call("q"))
	assert.ErrorContains(t, err, "semantic search failed")
}

func TestEmptyEnvelopeKeepsToolKind(t *testing.T) {
	e := newTestExecutor(&stubStore{}, &stubInferencer{})

	env := e.EmptyEnvelope(Outline)
	assert.Equal(t, store.KindStructure, env.Kind)
	assert.Equal(t, Outline, env.ToolName)
	assert.Empty(t, env.Entries)

	env = e.EmptyEnvelope(SemanticSearch)
	assert.Equal(t, store.KindContent, env.Kind)
}

func TestTitleSearchMergesPagesAndCaches(t *testing.T) {
	st := &stubStore{
		titleFn: func(title string) ([]store.Fragment, error) {
			return []store.Fragment{
				{Text: "part one", Title: title, PageRefs: []int{4}, PageData: map[string]string{"4": "p4"}},
				{Text: "part two", Title: title, PageRefs: []int{5}, PageData: map[string]string{"5": "p5"}},
			}, nil
		},
	}
	e := newTestExecutor(st, &stubInferencer{})
	def, _ := NewRegistry().Get(TitleSearch)

	env, err := e.Execute(context.Background(), def.Call("2. Method"))
	require.NoError(t, err)
	require.Len(t, env.Contents, 1, "all pages of one title merge into one fragment")

	merged := env.Contents[0]
	assert.Equal(t, "2. Method", merged.Title)
	assert.Equal(t, "part one\npart two", merged.Text)
	assert.Equal(t, []int{4, 5}, merged.PageRefs)
	assert.Equal(t, map[string]string{"4": "p4", "5": "p5"}, merged.PageData)

	// Second lookup is served from the cache.
	_, err = e.Execute(context.Background(), def.Call("2. Method"))
	require.NoError(t, err)
	assert.Equal(t, 1, st.titleCalls)
}

func TestTitleSearchMultipleTitles(t *testing.T) {
	st := &stubStore{
		titleFn: func(title string) ([]store.Fragment, error) {
			return []store.Fragment{{Text: "body of " + title, Title: title}}, nil
		},
	}
	e := newTestExecutor(st, &stubInferencer{})
	def, _ := NewRegistry().Get(TitleSearch)

	env, err := e.Execute(context.Background(), def.Call("1. Intro, 2. Method\n3. Results"))
	require.NoError(t, err)
	assert.Len(t, env.Contents, 3)
	assert.Equal(t, 3, st.titleCalls)
}

func TestExtractTitles(t *testing.T) {
	entries := []store.StructureEntry{
		{Title: "1. Introduction", PageStart: 1, PageEnd: 3},
		{Title: "2. Method", PageStart: 4, PageEnd: 9},
		{Title: "3. Training Setup", PageStart: 10, PageEnd: 14},
		{Title: "4. Results", PageStart: 15, PageEnd: 20},
	}
	st := &stubStore{structFn: func() ([]store.StructureEntry, error) { return entries, nil }}

	inferencer := &stubInferencer{
		response: `Here you go: {"titles": ["3. Training Setup", "2. Method"], "reason": "these cover training"}`,
	}
	e := newTestExecutor(st, inferencer)
	def, _ := NewRegistry().Get(ExtractTitles)

	env, err := e.Execute(context.Background(), def.Call("what optimizer is used?"))
	require.NoError(t, err)
	assert.Equal(t, store.KindStructure, env.Kind)
	require.Len(t, env.Entries, 2)
	assert.Equal(t, "3. Training Setup", env.Entries[0].Title)
	assert.Equal(t, 10, env.Entries[0].PageStart)
	assert.Equal(t, "these cover training", env.Metadata["reason"])
}

func TestExtractTitlesParseFallback(t *testing.T) {
	entries := []store.StructureEntry{
		{Title: "1. Introduction", PageStart: 1, PageEnd: 3},
		{Title: "2. Method", PageStart: 4, PageEnd: 9},
		{Title: "3. Training Setup", PageStart: 10, PageEnd: 14},
		{Title: "4. Results", PageStart: 15, PageEnd: 20},
	}
	st := &stubStore{structFn: func() ([]store.StructureEntry, error) { return entries, nil }}

	e := newTestExecutor(st, &stubInferencer{response: "I cannot decide"})
	def, _ := NewRegistry().Get(ExtractTitles)

	env, err := e.Execute(context.Background(), def.Call("q"))
	require.NoError(t, err)
	require.Len(t, env.Entries, 3, "fallback takes the outline head")
	assert.Equal(t, "1. Introduction", env.Entries[0].Title)
	assert.Equal(t, "fallback selection from outline head", env.Metadata["reason"])
}

func TestParseExtractedTitlesClampsToFive(t *testing.T) {
	titles, _, err := parseExtractedTitles(`{"titles": ["a","b","c","d","e","f","g"], "reason": "r"}`)
	require.NoError(t, err)
	assert.Len(t, titles, 5)
}

func TestSplitTitles(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"comma separated", "1. Intro, 2. Method", []string{"1. Intro", "2. Method"}},
		{"newline separated", "1. Intro\n2. Method\n", []string{"1. Intro", "2. Method"}},
		{"mixed with blanks", "1. Intro,\n\n , 2. Method", []string{"1. Intro", "2. Method"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitTitles(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced object", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Sure: {"a": {"b": 2}} done`, `{"a": {"b": 2}}`},
		{"no object", "nothing here", ""},
		{"reversed braces", "} {", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, SemanticSearch, r.Default().Name)

	_, err := r.Get("grep")
	assert.Error(t, err)

	described := r.Describe()
	for _, name := range []string{SemanticSearch, TitleSearch, Outline, ExtractTitles} {
		assert.Contains(t, described, name)
	}

	def, err := r.Get(TitleSearch)
	require.NoError(t, err)
	action := def.Call("2. Method")
	assert.Equal(t, TitleSearch, action.Tool)
	assert.Equal(t, "2. Method", action.Params["titles"])

	outline, err := r.Get(Outline)
	require.NoError(t, err)
	assert.Empty(t, outline.Call("ignored").Params)
}

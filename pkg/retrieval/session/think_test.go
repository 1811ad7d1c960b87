package session

import (
	"context"
	"fmt"
	"testing"

	"ai-docqa-be/pkg/retrieval/pool"
	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantTool string
		wantErr  bool
	}{
		{
			name:     "bare JSON",
			response: `{"tool": "outline", "argument": "", "reason": "need structure"}`,
			wantTool: "outline",
		},
		{
			name:     "JSON wrapped in prose",
			response: "Sure, here is my choice:\n```json\n{\"tool\": \"title_search\", \"argument\": \"2. Method\", \"reason\": \"r\"}\n```",
			wantTool: "title_search",
		},
		{
			name:     "no JSON at all",
			response: "I think semantic search is best",
			wantErr:  true,
		},
		{
			name:     "missing tool field",
			response: `{"argument": "x", "reason": "r"}`,
			wantErr:  true,
		},
		{
			name:     "malformed JSON",
			response: `{"tool": "outline",`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDecision(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTool, d.Tool)
		})
	}
}

func TestIsStaleRepeat(t *testing.T) {
	s := &Session{
		PriorActions:      []store.Action{{Tool: "semantic_search", Params: map[string]string{"query": "old"}}},
		PriorObservations: []string{"no new content"},
		Actions: []store.Action{
			{Tool: "semantic_search", Params: map[string]string{"query": "adam"}},
			{Tool: "title_search", Params: map[string]string{"titles": "2. Method"}},
		},
		Observations: []string{
			"3 new results",
			"returned 2 results, all duplicates",
		},
	}

	// Productive action may repeat.
	assert.False(t, s.isStaleRepeat(store.Action{Tool: "semantic_search", Params: map[string]string{"query": "adam"}}))

	// Exhausted actions may not, current turn or prior.
	assert.True(t, s.isStaleRepeat(store.Action{Tool: "title_search", Params: map[string]string{"titles": "2. Method"}}))
	assert.True(t, s.isStaleRepeat(store.Action{Tool: "semantic_search", Params: map[string]string{"query": "old"}}))

	// Same tool with a different argument is a fresh action.
	assert.False(t, s.isStaleRepeat(store.Action{Tool: "title_search", Params: map[string]string{"titles": "3. Results"}}))
}

func TestThinkFallsBackToSemanticSearch(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"LLM error", "", fmt.Errorf("model unavailable")},
		{"unparseable response", "let me think about this...", nil},
		{"unknown tool", `{"tool": "grep", "argument": "x", "reason": "r"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llmClient := &fakeLLM{}
			llmClient.think = func(call int, prompt string) (string, error) {
				return tt.response, tt.err
			}
			p := pool.New(stubFactory(&stubStore{}), testLogger())
			r := NewRunner(tool.NewRegistry(), llmClient, p, Config{}, testLogger())

			s := &Session{Query: "what optimizer?", RewrittenQuery: "what optimizer?"}
			action := r.think(context.Background(), s)

			assert.Equal(t, "semantic_search", action.Tool)
			assert.Equal(t, "what optimizer?", action.Params["query"])
		})
	}
}

func TestThinkRejectsStaleRepeatDecision(t *testing.T) {
	llmClient := &fakeLLM{}
	llmClient.think = func(call int, prompt string) (string, error) {
		return `{"tool": "title_search", "argument": "2. Method", "reason": "r"}`, nil
	}
	p := pool.New(stubFactory(&stubStore{}), testLogger())
	r := NewRunner(tool.NewRegistry(), llmClient, p, Config{}, testLogger())

	s := &Session{
		Query:          "what optimizer?",
		RewrittenQuery: "what optimizer?",
		Actions:        []store.Action{{Tool: "title_search", Params: map[string]string{"titles": "2. Method"}}},
		Observations:   []string{"returned 1 results, all duplicates"},
	}
	action := r.think(context.Background(), s)
	assert.Equal(t, "semantic_search", action.Tool)
}

func TestSerializeHistory(t *testing.T) {
	s := &Session{}
	assert.Equal(t, "(no actions yet)\n", serializeHistory(s))

	s.PriorActions = []store.Action{{Tool: "outline", Params: map[string]string{}}}
	s.PriorObservations = []string{"retrieved 4 structural items"}
	s.Actions = []store.Action{{Tool: "semantic_search", Params: map[string]string{"query": "adam"}}}
	s.Observations = []string{"2 new results"}

	got := serializeHistory(s)
	assert.Contains(t, got, "1. outline() -> retrieved 4 structural items")
	assert.Contains(t, got, `2. semantic_search(query="adam") -> 2 new results`)
}

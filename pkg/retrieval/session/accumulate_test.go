package session

import (
	"testing"

	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func contentEnvelope(texts ...string) *tool.Envelope {
	env := &tool.Envelope{Kind: store.KindContent, ToolName: tool.SemanticSearch}
	for _, text := range texts {
		env.Contents = append(env.Contents, store.Fragment{Text: text, Title: "s", PageRefs: []int{1}})
	}
	return env
}

func TestAccumulateContent(t *testing.T) {
	s := &Session{}

	obs := s.accumulate(contentEnvelope("alpha", "beta"))
	assert.Equal(t, "2 new results", obs)
	assert.Len(t, s.Accumulated, 2)

	// Same envelope again: nothing is added twice.
	obs = s.accumulate(contentEnvelope("alpha", "beta"))
	assert.Equal(t, "returned 2 results, all duplicates", obs)
	assert.Len(t, s.Accumulated, 2)

	// Partial overlap keeps only the unseen text.
	obs = s.accumulate(contentEnvelope("beta", "gamma"))
	assert.Equal(t, "1 new results", obs)
	assert.Len(t, s.Accumulated, 3)
}

func TestAccumulateEmptyEnvelope(t *testing.T) {
	s := &Session{}

	obs := s.accumulate(&tool.Envelope{Kind: store.KindContent, ToolName: tool.SemanticSearch})
	assert.Equal(t, "no new content", obs)
	assert.Empty(t, s.Accumulated)

	obs = s.accumulate(&tool.Envelope{Kind: store.KindStructure, ToolName: tool.Outline})
	assert.Equal(t, "no new content", obs)
	assert.Empty(t, s.Accumulated)
}

func TestAccumulateStructure(t *testing.T) {
	s := &Session{}

	env := &tool.Envelope{
		Kind:     store.KindStructure,
		ToolName: tool.Outline,
		Entries: []store.StructureEntry{
			{Title: "1. Introduction", PageStart: 1, PageEnd: 3},
			{Title: "2. Method", PageStart: 4, PageEnd: 9},
		},
	}
	obs := s.accumulate(env)
	assert.Equal(t, "retrieved 2 structural items", obs)
	assert.Len(t, s.Accumulated, 1)
	assert.Equal(t, store.KindStructure, s.Accumulated[0].Kind)
	assert.Equal(t, tool.Outline, s.Accumulated[0].ToolName)
	assert.Len(t, s.Accumulated[0].Entries, 2)
}

package session

import (
	"strings"
	"testing"

	"ai-docqa-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func contentItem(f store.Fragment) store.Accumulated {
	return store.Accumulated{Kind: store.KindContent, Fragment: &f}
}

func TestBuildExcerptMergesAndOrdersPages(t *testing.T) {
	items := []store.Accumulated{
		contentItem(store.Fragment{
			Title:    "3. Training Setup",
			Text:     "refactored text",
			PageData: map[string]string{"10": "raw page ten", "2": "raw page two"},
		}),
		contentItem(store.Fragment{
			Title:    "1. Introduction",
			Text:     "intro text",
			PageData: map[string]string{"1": "raw page one"},
		}),
		{Kind: store.KindStructure, ToolName: "outline"},
	}

	excerpt := buildExcerpt(items)

	// Numeric page order, not lexical: 1, 2, 10.
	i1 := strings.Index(excerpt, "[Page 1]")
	i2 := strings.Index(excerpt, "[Page 2]")
	i10 := strings.Index(excerpt, "[Page 10]")
	assert.True(t, i1 >= 0 && i1 < i2 && i2 < i10, "pages out of order in %q", excerpt)

	// Raw payloads win; the refactored text is not used when raw data exists.
	assert.Contains(t, excerpt, "raw page ten")
	assert.NotContains(t, excerpt, "refactored text")
}

func TestBuildExcerptDeduplicatesByPage(t *testing.T) {
	items := []store.Accumulated{
		contentItem(store.Fragment{Title: "a", PageData: map[string]string{"7": "first version"}}),
		contentItem(store.Fragment{Title: "b", PageData: map[string]string{"7": "second version"}}),
	}

	excerpt := buildExcerpt(items)
	assert.Equal(t, 1, strings.Count(excerpt, "[Page 7]"))
	assert.Contains(t, excerpt, "first version")
	assert.NotContains(t, excerpt, "second version")
}

func TestBuildExcerptFallsBackToFragmentText(t *testing.T) {
	items := []store.Accumulated{
		contentItem(store.Fragment{Title: "Appendix", Text: "appendix body"}),
		contentItem(store.Fragment{Title: "s", Text: "page five body", PageRefs: []int{5}}),
	}

	excerpt := buildExcerpt(items)
	assert.Contains(t, excerpt, "[Page 5]\npage five body")
	assert.Contains(t, excerpt, "[Page Appendix]\nappendix body")
	// Numeric identifiers sort before named ones.
	assert.Less(t, strings.Index(excerpt, "[Page 5]"), strings.Index(excerpt, "[Page Appendix]"))
}

func TestBuildExcerptEmpty(t *testing.T) {
	assert.Equal(t, "", buildExcerpt(nil))
	assert.Equal(t, "", buildExcerpt([]store.Accumulated{
		{Kind: store.KindStructure, ToolName: "outline"},
	}))
}

func TestLessPageID(t *testing.T) {
	assert.True(t, lessPageID("2", "10"))
	assert.False(t, lessPageID("10", "2"))
	assert.True(t, lessPageID("3", "Appendix"))
	assert.False(t, lessPageID("Appendix", "3"))
	assert.True(t, lessPageID("Appendix", "Glossary"))
}

func TestCleanRewrite(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"plain", "adamw optimizer settings", "adamw optimizer settings"},
		{"quoted", `"adamw optimizer settings"`, "adamw optimizer settings"},
		{"backticked with trailing lines", "`adamw settings`\nExplanation: ...", "adamw settings"},
		{"whitespace", "  adamw  \n", "adamw"},
		{"empty", "\n\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanRewrite(tt.response))
		})
	}
}

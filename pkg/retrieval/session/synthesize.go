package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ai-docqa-be/pkg/store"
)

// synthesize produces the final answer from the accumulated content. Raw
// per-page payloads are deduplicated by page identifier across all items
// (raw data wins over refactored text, being closer to source truth), sorted
// numerically and concatenated into one ordered excerpt the LLM answers from.
//
// With no content gathered, synthesis is skipped and the evaluation's last
// reason stands as the outcome.
func (r *Runner) synthesize(ctx context.Context, s *Session) {
	excerpt := buildExcerpt(s.Accumulated)
	if excerpt == "" {
		r.logger.Printf("[FORMAT] No content accumulated, skipping synthesis: %s", s.CompletionReason)
		return
	}

	prompt := buildSynthesisPrompt(s.Query, excerpt)

	answer, err := r.inferencer.Invoke(ctx, "user", prompt, s.id)
	if err != nil {
		r.logger.Printf("[FORMAT] Synthesis failed: %v", err)
		return
	}

	s.FinalAnswer = answer
}

// buildExcerpt merges every content item's pages into one page-ordered text.
func buildExcerpt(items []store.Accumulated) string {
	pages := make(map[string]string)

	for _, item := range items {
		if item.Kind != store.KindContent || item.Fragment == nil {
			continue
		}
		f := item.Fragment

		if len(f.PageData) > 0 {
			// Raw per-page payloads; first writer wins so duplicates across
			// fragments collapse.
			for pageID, raw := range f.PageData {
				if _, exists := pages[pageID]; !exists {
					pages[pageID] = raw
				}
			}
			continue
		}

		// No raw payload: fall back to the fragment text keyed by its first
		// page reference.
		key := f.Title
		if len(f.PageRefs) > 0 {
			key = strconv.Itoa(f.PageRefs[0])
		}
		if _, exists := pages[key]; !exists {
			pages[key] = f.Text
		}
	}

	if len(pages) == 0 {
		return ""
	}

	ids := make([]string, 0, len(pages))
	for id := range pages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessPageID(ids[i], ids[j]) })

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(fmt.Sprintf("[Page %s]\n%s\n\n", id, pages[id]))
	}
	return b.String()
}

// lessPageID orders numeric page identifiers numerically, non-numeric ones
// lexically after all numbers.
func lessPageID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func buildSynthesisPrompt(query, excerpt string) string {
	var b strings.Builder

	b.WriteString("<task>\nAnswer the question using ONLY the document excerpt below.\n")
	b.WriteString("Do not cite page numbers inline. End the answer with a 'References' section listing the pages used.\n</task>\n\n")

	b.WriteString("<excerpt>\n")
	b.WriteString(excerpt)
	b.WriteString("</excerpt>\n\n")

	b.WriteString(fmt.Sprintf("Question: %s", query))

	return b.String()
}

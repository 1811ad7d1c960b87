package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"
)

type evaluation struct {
	Complete bool   `json:"complete"`
	Reason   string `json:"reason"`
}

// evaluate judges whether the gathered content answers the query. It sees the
// structured history and a compact per-item summary (never full text), plus
// whether the iteration budget is spent. A parse or call failure falls back
// to the deterministic rule: complete if and only if the budget is exhausted.
func (r *Runner) evaluate(ctx context.Context, s *Session) (bool, string) {
	finalIteration := s.Iteration >= s.MaxIterations

	prompt := buildEvaluatePrompt(s, finalIteration)

	response, err := r.inferencer.Invoke(ctx, "user", prompt, s.id)
	if err != nil {
		r.logger.Printf("[EVAL] LLM call failed, applying budget rule: %v", err)
		return fallbackEvaluation(finalIteration)
	}

	ev, err := parseEvaluation(response)
	if err != nil {
		r.logger.Printf("[EVAL] Parse failed, applying budget rule: %v", err)
		return fallbackEvaluation(finalIteration)
	}

	r.logger.Printf("[EVAL] iter=%d complete=%v reason=%s", s.Iteration, ev.Complete, truncate(ev.Reason, 80))
	return ev.Complete, ev.Reason
}

func fallbackEvaluation(finalIteration bool) (bool, string) {
	if finalIteration {
		return true, "iteration budget exhausted"
	}
	return false, "evaluation unavailable, continue searching with different keywords"
}

func buildEvaluatePrompt(s *Session, finalIteration bool) string {
	var b strings.Builder

	b.WriteString("<system>\nJudge whether the gathered material is enough to answer the question.\n</system>\n\n")

	b.WriteString(fmt.Sprintf("<query>\n%s\n</query>\n\n", s.Query))

	b.WriteString("<history>\n")
	b.WriteString(serializeHistory(s))
	b.WriteString("</history>\n\n")

	b.WriteString("<gathered_summary>\n")
	b.WriteString(compactSummary(s.Accumulated))
	b.WriteString("</gathered_summary>\n\n")

	if finalIteration {
		b.WriteString("<note>\nThis was the final allowed iteration. Judge with what exists.\n</note>\n\n")
	}

	b.WriteString("Respond with ONLY valid JSON:\n")
	b.WriteString("{\"complete\": true, \"reason\": \"...\"}\n")
	b.WriteString("If not complete, the reason MUST contain a concrete next step (e.g. retry with different keywords, fetch a named section).")

	return b.String()
}

func parseEvaluation(response string) (*evaluation, error) {
	jsonContent := tool.ExtractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var ev evaluation
	if err := json.Unmarshal([]byte(jsonContent), &ev); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	return &ev, nil
}

// compactSummary renders accumulated items as one line each: title, page
// range and size. Full text never enters evaluation prompts, keeping their
// size bounded by item count instead of content length.
func compactSummary(items []store.Accumulated) string {
	if len(items) == 0 {
		return "(nothing gathered yet)\n"
	}

	var b strings.Builder
	for i, item := range items {
		switch item.Kind {
		case store.KindContent:
			f := item.Fragment
			b.WriteString(fmt.Sprintf("%d. [content] %s (pages %s, %d chars)\n",
				i+1, f.Title, pageRange(f.PageRefs), len(f.Text)))
		case store.KindStructure:
			b.WriteString(fmt.Sprintf("%d. [structure] %s: %d entries\n",
				i+1, item.ToolName, len(item.Entries)))
		}
	}
	return b.String()
}

func pageRange(pages []int) string {
	if len(pages) == 0 {
		return "?"
	}
	min, max := pages[0], pages[0]
	for _, p := range pages[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min == max {
		return fmt.Sprintf("%d", min)
	}
	return fmt.Sprintf("%d-%d", min, max)
}

package session

import (
	"context"
	"fmt"
	"strings"
)

// rewrite reformulates the query for the next cycle. The prior evaluation's
// reason is fed in as guidance so repeated failures steer the next query
// instead of repeating it verbatim. Failures fall back to the current query.
func (r *Runner) rewrite(ctx context.Context, s *Session) string {
	prompt := buildRewritePrompt(s)

	response, err := r.inferencer.Invoke(ctx, "user", prompt, s.id)
	if err != nil {
		r.logger.Printf("[REWRITE] LLM call failed, keeping query unchanged: %v", err)
		return s.RewrittenQuery
	}

	rewritten := cleanRewrite(response)
	if rewritten == "" {
		return s.RewrittenQuery
	}

	r.logger.Printf("[REWRITE] %q -> %q", truncate(s.RewrittenQuery, 40), truncate(rewritten, 40))
	return rewritten
}

func buildRewritePrompt(s *Session) string {
	var b strings.Builder

	b.WriteString("<task>\nRewrite the search query below into the most effective form for the next retrieval attempt.\n")
	b.WriteString("Respond with ONLY the rewritten query, no explanation, no quotes.\n</task>\n\n")

	b.WriteString(fmt.Sprintf("Original question: %s\n", s.Query))
	if s.RewrittenQuery != s.Query {
		b.WriteString(fmt.Sprintf("Current query: %s\n", s.RewrittenQuery))
	}

	if s.lastEvalReason != "" {
		b.WriteString("\n<guidance>\n")
		b.WriteString("The last evaluation of the search progress said:\n")
		b.WriteString(s.lastEvalReason)
		b.WriteString("\nAdjust the query accordingly.\n</guidance>\n")
	}

	if s.PriorSummary != "" {
		b.WriteString("\n<prior_context>\n")
		b.WriteString(s.PriorSummary)
		b.WriteString("\n</prior_context>\n")
	}

	return b.String()
}

// cleanRewrite strips quoting and whitespace an LLM tends to wrap a bare
// query in, and keeps only the first line.
func cleanRewrite(response string) string {
	line := strings.TrimSpace(response)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Trim(line, "\"'` ")
	return strings.TrimSpace(line)
}

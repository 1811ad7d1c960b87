package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"
)

// decision is the structured shape a think response must parse into.
type decision struct {
	Tool     string `json:"tool"`
	Argument string `json:"argument"`
	Reason   string `json:"reason"`
}

// think selects exactly one tool and its argument for this cycle. The prompt
// carries the rewritten query, the serialized action/observation history and
// accumulated-content counts. A parse failure, an unknown tool, or a stale
// repeat of an exhausted action all fall back to semantic search with the
// current rewritten query.
func (r *Runner) think(ctx context.Context, s *Session) store.Action {
	prompt := r.buildThinkPrompt(s)

	fallback := r.registry.Default().Call(s.RewrittenQuery)

	response, err := r.inferencer.Invoke(ctx, "user", prompt, s.id)
	if err != nil {
		r.logger.Printf("[THINK] LLM call failed, falling back to %s: %v", fallback.Tool, err)
		return fallback
	}

	d, err := parseDecision(response)
	if err != nil {
		r.logger.Printf("[THINK] Decision parse failed, falling back to %s: %v", fallback.Tool, err)
		return fallback
	}

	def, err := r.registry.Get(d.Tool)
	if err != nil {
		r.logger.Printf("[THINK] Unknown tool %q, falling back to %s", d.Tool, fallback.Tool)
		return fallback
	}

	action := def.Call(d.Argument)

	if s.isStaleRepeat(action) {
		r.logger.Printf("[THINK] Decision repeats an exhausted action (%s), falling back to %s",
			action.Tool, fallback.Tool)
		return fallback
	}

	r.logger.Printf("[THINK] iter=%d chose %s (%s)", s.Iteration, action.Tool, truncate(d.Reason, 60))
	return action
}

func (r *Runner) buildThinkPrompt(s *Session) string {
	var b strings.Builder

	b.WriteString("<system>\nYou drive an iterative document search. Pick exactly ONE tool for the next step.\n</system>\n\n")

	b.WriteString("<tools>\n")
	b.WriteString(r.registry.Describe())
	b.WriteString("</tools>\n\n")

	b.WriteString(fmt.Sprintf("<query>\n%s\n</query>\n\n", s.RewrittenQuery))

	b.WriteString("<history>\n")
	b.WriteString(serializeHistory(s))
	b.WriteString("</history>\n\n")

	counts := store.Count(s.Accumulated)
	b.WriteString(fmt.Sprintf("<gathered>\ncontent items: %d\nstructural items: %d\n</gathered>\n\n",
		counts.Content, counts.Structural))

	b.WriteString("<rules>\n")
	b.WriteString("Never repeat an action whose observation reported no new results; vary the tool or the argument instead.\n")
	b.WriteString("</rules>\n\n")

	b.WriteString("Respond with ONLY valid JSON:\n")
	b.WriteString("{\"tool\": \"semantic_search\", \"argument\": \"...\", \"reason\": \"brief\"}")

	return b.String()
}

// serializeHistory renders the full action/observation log, prior turns
// included, as numbered lines. Serialized, not summarized: the decision needs
// the exact arguments already tried.
func serializeHistory(s *Session) string {
	actions := append(append([]store.Action{}, s.PriorActions...), s.Actions...)
	observations := append(append([]string{}, s.PriorObservations...), s.Observations...)

	if len(actions) == 0 {
		return "(no actions yet)\n"
	}

	var b strings.Builder
	for i, a := range actions {
		obs := ""
		if i < len(observations) {
			obs = observations[i]
		}
		b.WriteString(fmt.Sprintf("%d. %s(%s) -> %s\n", i+1, a.Tool, flattenParams(a.Params), obs))
	}
	return b.String()
}

func flattenParams(params map[string]string) string {
	var parts []string
	for k, v := range params {
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(parts, ", ")
}

func parseDecision(response string) (*decision, error) {
	jsonContent := tool.ExtractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var d decision
	if err := json.Unmarshal([]byte(jsonContent), &d); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	if d.Tool == "" {
		return nil, fmt.Errorf("decision missing tool")
	}
	return &d, nil
}

// isStaleRepeat reports whether an identical {tool, params} pair was already
// issued and its observation signaled no new information.
func (s *Session) isStaleRepeat(action store.Action) bool {
	actions := append(append([]store.Action{}, s.PriorActions...), s.Actions...)
	observations := append(append([]string{}, s.PriorObservations...), s.Observations...)

	for i, a := range actions {
		if a.Tool != action.Tool || !sameParams(a.Params, action.Params) {
			continue
		}
		if i < len(observations) && observationSignalsNoNew(observations[i]) {
			return true
		}
	}
	return false
}

func sameParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func observationSignalsNoNew(observation string) bool {
	return strings.Contains(observation, "no new content") ||
		strings.Contains(observation, "all duplicates")
}

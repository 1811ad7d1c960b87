package session

import (
	"fmt"

	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/store"
)

// accumulate folds a tool envelope into the session's accumulated content and
// derives the one-line observation for the cycle. That observation is the
// only signal the loop uses to recognize a stuck strategy.
//
// Content fragments are deduplicated by exact text against everything
// accumulated so far; structural envelopes are appended whole, since distinct
// calls with distinct parameters are assumed meaningfully distinct.
func (s *Session) accumulate(env *tool.Envelope) string {
	switch env.Kind {
	case store.KindContent:
		returned := len(env.Contents)
		if returned == 0 {
			return "no new content"
		}

		added := 0
		for i := range env.Contents {
			f := env.Contents[i]
			if s.hasContentText(f.Text) {
				continue
			}
			s.Accumulated = append(s.Accumulated, store.Accumulated{
				Kind:     store.KindContent,
				Fragment: &f,
			})
			added++
		}

		if added == 0 {
			return fmt.Sprintf("returned %d results, all duplicates", returned)
		}
		return fmt.Sprintf("%d new results", added)

	case store.KindStructure:
		if len(env.Entries) == 0 {
			return "no new content"
		}
		s.Accumulated = append(s.Accumulated, store.Accumulated{
			Kind:     store.KindStructure,
			ToolName: env.ToolName,
			Entries:  env.Entries,
			Metadata: env.Metadata,
		})
		return fmt.Sprintf("retrieved %d structural items", len(env.Entries))

	default:
		return "no new content"
	}
}

func (s *Session) hasContentText(text string) bool {
	for _, item := range s.Accumulated {
		if item.Kind == store.KindContent && item.Fragment != nil && item.Fragment.Text == text {
			return true
		}
	}
	return false
}

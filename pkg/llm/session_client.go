package llm

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Inferencer is the session-scoped inference surface consumed by the
// retrieval core: a role/prompt pair plus a session identifier. Conversational
// context for a session id is maintained here, not by callers.
type Inferencer interface {
	Invoke(ctx context.Context, role, prompt, sessionID string) (string, error)
}

// SessionClient implements Inferencer on top of an LLMProvider, keeping a
// rolling chat history per session id in an expiring cache.
type SessionClient struct {
	provider   LLMProvider
	histories  *cache.Cache
	maxHistory int
}

// Ensure SessionClient implements Inferencer
var _ Inferencer = &SessionClient{}

func NewSessionClient(provider LLMProvider) *SessionClient {
	// Histories expire after 1 hour of inactivity, purged every 10 minutes
	return &SessionClient{
		provider:   provider,
		histories:  cache.New(1*time.Hour, 10*time.Minute),
		maxHistory: 20,
	}
}

// Invoke sends the prompt under the given role, carrying the session's prior
// messages. The assistant reply is appended to the session history.
func (c *SessionClient) Invoke(ctx context.Context, role, prompt, sessionID string) (string, error) {
	var history []Message
	if x, found := c.histories.Get(sessionID); found {
		history = x.([]Message)
	}

	if role == "" {
		role = "user"
	}
	messages := append(append([]Message{}, history...), Message{Role: role, Content: prompt})

	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	history = append(messages, Message{Role: "assistant", Content: response})
	if len(history) > c.maxHistory {
		history = history[len(history)-c.maxHistory:]
	}
	c.histories.Set(sessionID, history, cache.DefaultExpiration)

	return response, nil
}

// Forget drops the stored history for a session id.
func (c *SessionClient) Forget(sessionID string) {
	c.histories.Delete(sessionID)
}

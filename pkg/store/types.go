package store

// Fragment represents a retrievable passage returned by the similarity store
type Fragment struct {
	Text     string            `json:"text"`
	Title    string            `json:"title"`
	PageRefs []int             `json:"page_refs"`
	PageData map[string]string `json:"page_data"` // page identifier -> raw per-page text
	Score    float32           `json:"score"`
}

// StructureEntry represents one outline/chapter entry of a document
type StructureEntry struct {
	Title     string `json:"title"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

// Accumulated is one entry of a session's accumulated content. It is a tagged
// variant: Kind "content" carries a Fragment, Kind "structure" carries the
// structural payload of a whole tool envelope.
type Accumulated struct {
	Kind     string                 `json:"kind"` // "content" | "structure"
	Fragment *Fragment              `json:"fragment,omitempty"`
	ToolName string                 `json:"tool_name,omitempty"`
	Entries  []StructureEntry       `json:"entries,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Kind constants for Accumulated and tool envelopes
const (
	KindContent   = "content"
	KindStructure = "structure"
)

// RetrievalMode distinguishes how a session targets documents. Persisted
// state built under one mode is discarded when the next turn uses another.
type RetrievalMode string

const (
	ModeSingle      RetrievalMode = "single"
	ModeCrossAuto   RetrievalMode = "cross-auto"
	ModeCrossManual RetrievalMode = "cross-manual"
)

// Action is one tool invocation issued by a session
type Action struct {
	Tool   string            `json:"tool"`
	Params map[string]string `json:"params"`
}

// PersistedState is the trimmed snapshot of a finished session, restored into
// the next session for the same document
type PersistedState struct {
	Mode         RetrievalMode `json:"mode"`
	Actions      []Action      `json:"actions"`
	Observations []string      `json:"observations"`
	Accumulated  []Accumulated `json:"accumulated"`
	Summary      string        `json:"summary"` // rolling intermediate summary
}

// ContentCounts buckets accumulated entries by category for think prompts
type ContentCounts struct {
	Content    int
	Structural int
}

// Count returns accumulated entries bucketed by kind
func Count(items []Accumulated) ContentCounts {
	var c ContentCounts
	for _, it := range items {
		if it.Kind == KindContent {
			c.Content++
		} else {
			c.Structural++
		}
	}
	return c
}

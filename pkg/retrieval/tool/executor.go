package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/vectorstore"
)

// TitleCache avoids repeat similarity-store calls for title-exact lookups.
// Implemented by the document-context pool.
type TitleCache interface {
	GetTitle(title string) ([]store.Fragment, bool)
	SetTitle(title string, fragments []store.Fragment)
}

// Executor invokes tools against one document's vector store. One executor is
// built per session; it carries the session id for LLM-backed tools.
type Executor struct {
	registry   *Registry
	store      vectorstore.Store
	titleCache TitleCache
	inferencer llm.Inferencer
	sessionID  string
	topK       int
	logger     *log.Logger
}

func NewExecutor(
	registry *Registry,
	vs vectorstore.Store,
	titleCache TitleCache,
	inferencer llm.Inferencer,
	sessionID string,
	topK int,
	logger *log.Logger,
) *Executor {
	if topK <= 0 {
		topK = 5
	}
	return &Executor{
		registry:   registry,
		store:      vs,
		titleCache: titleCache,
		inferencer: inferencer,
		sessionID:  sessionID,
		topK:       topK,
		logger:     logger,
	}
}

// Execute runs one action and returns its envelope. Errors are for the caller
// to degrade; the session loop treats them as an empty result.
func (e *Executor) Execute(ctx context.Context, action store.Action) (*Envelope, error) {
	def, err := e.registry.Get(action.Tool)
	if err != nil {
		return nil, err
	}

	input := ""
	if len(def.Params) > 0 {
		input = action.Params[def.Params[0].Name]
	}

	switch def.Name {
	case SemanticSearch:
		return e.semanticSearch(ctx, input)
	case TitleSearch:
		return e.titleSearch(ctx, input)
	case Outline:
		return e.outline(ctx)
	case ExtractTitles:
		return e.extractTitles(ctx, input)
	default:
		return nil, fmt.Errorf("unknown tool: %s", def.Name)
	}
}

// EmptyEnvelope is the degraded result for a failed tool call.
func (e *Executor) EmptyEnvelope(toolName string) *Envelope {
	kind := store.KindContent
	if def, err := e.registry.Get(toolName); err == nil {
		kind = def.Kind
	}
	return &Envelope{Kind: kind, ToolName: toolName}
}

func (e *Executor) semanticSearch(ctx context.Context, query string) (*Envelope, error) {
	fragments, err := e.store.Search(ctx, query, e.topK, vectorstore.Filter{}, true)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	e.logger.Printf("[ACT] semantic_search returned %d fragments", len(fragments))
	return &Envelope{Kind: store.KindContent, ToolName: SemanticSearch, Contents: fragments}, nil
}

// titleSearch fetches every title in the list, merging all matching pages per
// title into one fragment. The pooled title cache is consulted first.
func (e *Executor) titleSearch(ctx context.Context, titleList string) (*Envelope, error) {
	titles := splitTitles(titleList)
	if len(titles) == 0 {
		return &Envelope{Kind: store.KindContent, ToolName: TitleSearch}, nil
	}

	var contents []store.Fragment
	for _, title := range titles {
		if cached, ok := e.titleCache.GetTitle(title); ok {
			e.logger.Printf("[ACT] title_search cache hit: %s", title)
			contents = append(contents, cached...)
			continue
		}

		fragments, err := e.store.SearchByTitle(ctx, title, "", true)
		if err != nil {
			return nil, fmt.Errorf("title search failed for %q: %w", title, err)
		}
		merged := mergeByTitle(title, fragments)
		e.titleCache.SetTitle(title, merged)
		contents = append(contents, merged...)
	}

	e.logger.Printf("[ACT] title_search resolved %d titles into %d fragments", len(titles), len(contents))
	return &Envelope{Kind: store.KindContent, ToolName: TitleSearch, Contents: contents}, nil
}

func (e *Executor) outline(ctx context.Context) (*Envelope, error) {
	entries, err := e.store.Structure(ctx)
	if err != nil {
		return nil, fmt.Errorf("outline retrieval failed: %w", err)
	}
	return &Envelope{Kind: store.KindStructure, ToolName: Outline, Entries: entries}, nil
}

// extractTitles asks the LLM to pick 2-5 outline titles relevant to the query.
func (e *Executor) extractTitles(ctx context.Context, query string) (*Envelope, error) {
	entries, err := e.store.Structure(ctx)
	if err != nil {
		return nil, fmt.Errorf("outline retrieval failed: %w", err)
	}
	if len(entries) == 0 {
		return &Envelope{Kind: store.KindStructure, ToolName: ExtractTitles}, nil
	}

	prompt := buildExtractPrompt(query, entries)
	response, err := e.inferencer.Invoke(ctx, "user", prompt, e.sessionID)
	if err != nil {
		return nil, fmt.Errorf("title extraction failed: %w", err)
	}

	titles, reason, err := parseExtractedTitles(response)
	if err != nil {
		// Fallback: take the leading outline entries, the loop can still
		// fetch them by title.
		e.logger.Printf("[WARN] title extraction parse failed, using outline head: %v", err)
		titles = nil
		for i := 0; i < len(entries) && i < 3; i++ {
			titles = append(titles, entries[i].Title)
		}
		reason = "fallback selection from outline head"
	}

	selected := resolveTitles(titles, entries)
	return &Envelope{
		Kind:     store.KindStructure,
		ToolName: ExtractTitles,
		Entries:  selected,
		Metadata: map[string]interface{}{"reason": reason},
	}, nil
}

func buildExtractPrompt(query string, entries []store.StructureEntry) string {
	var b strings.Builder
	b.WriteString("<task>\nFrom the document outline below, pick the 2-5 section titles most relevant to the question.\n</task>\n\n")
	b.WriteString("<outline>\n")
	for _, en := range entries {
		b.WriteString(fmt.Sprintf("- %s (p.%d-%d)\n", en.Title, en.PageStart, en.PageEnd))
	}
	b.WriteString("</outline>\n\n")
	b.WriteString(fmt.Sprintf("Question: %s\n\n", query))
	b.WriteString("Respond with ONLY valid JSON:\n")
	b.WriteString("{\"titles\": [\"...\"], \"reason\": \"why these sections\"}")
	return b.String()
}

func parseExtractedTitles(response string) ([]string, string, error) {
	jsonContent := ExtractJSON(response)
	if jsonContent == "" {
		return nil, "", fmt.Errorf("no JSON found in response")
	}

	var parsed struct {
		Titles []string `json:"titles"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, "", fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	if len(parsed.Titles) == 0 {
		return nil, "", fmt.Errorf("no titles in response")
	}
	// Clamp to the 2-5 band rather than rejecting
	if len(parsed.Titles) > 5 {
		parsed.Titles = parsed.Titles[:5]
	}
	return parsed.Titles, parsed.Reason, nil
}

// resolveTitles maps selected titles back to outline entries, keeping page
// ranges when the title matches and passing unknown titles through bare.
func resolveTitles(titles []string, entries []store.StructureEntry) []store.StructureEntry {
	byTitle := make(map[string]store.StructureEntry, len(entries))
	for _, en := range entries {
		byTitle[en.Title] = en
	}

	var selected []store.StructureEntry
	for _, t := range titles {
		if en, ok := byTitle[t]; ok {
			selected = append(selected, en)
		} else {
			selected = append(selected, store.StructureEntry{Title: t})
		}
	}
	return selected
}

func mergeByTitle(title string, fragments []store.Fragment) []store.Fragment {
	if len(fragments) <= 1 {
		return fragments
	}

	merged := store.Fragment{Title: title, PageData: map[string]string{}}
	var texts []string
	seenPages := make(map[int]bool)
	for _, f := range fragments {
		texts = append(texts, f.Text)
		for _, p := range f.PageRefs {
			if !seenPages[p] {
				seenPages[p] = true
				merged.PageRefs = append(merged.PageRefs, p)
			}
		}
		for k, v := range f.PageData {
			merged.PageData[k] = v
		}
	}
	merged.Text = strings.Join(texts, "\n")
	return []store.Fragment{merged}
}

func splitTitles(list string) []string {
	raw := strings.FieldsFunc(list, func(r rune) bool {
		return r == '\n' || r == ','
	})
	var titles []string
	for _, t := range raw {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			titles = append(titles, trimmed)
		}
	}
	return titles
}

// ExtractJSON slices the outermost JSON object out of a free-text LLM reply.
func ExtractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}

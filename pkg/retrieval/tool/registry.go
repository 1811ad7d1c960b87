package tool

import (
	"fmt"
	"strings"

	"ai-docqa-be/pkg/store"
)

// Canonical tool names
const (
	SemanticSearch = "semantic_search"
	TitleSearch    = "title_search"
	Outline        = "outline"
	ExtractTitles  = "extract_titles"
)

// Param describes one declared tool parameter. The first declared parameter
// receives the think-stage's single argument.
type Param struct {
	Name        string
	Type        string
	Description string
}

// Definition declares a retrieval tool: its parameter shape, its result kind
// and a priority used to order tool descriptions in think prompts.
type Definition struct {
	Name        string
	Description string
	Params      []Param
	Kind        string // store.KindContent | store.KindStructure
	Priority    int
}

// Envelope is the uniform wrapper every tool returns. Kind selects which
// payload slice is populated; accumulation and evaluation never branch per
// tool beyond this discriminant.
type Envelope struct {
	Kind     string
	ToolName string
	Contents []store.Fragment       // set when Kind == store.KindContent
	Entries  []store.StructureEntry // set when Kind == store.KindStructure
	Metadata map[string]interface{}
}

// Registry is the fixed set of retrieval operations.
type Registry struct {
	defs []Definition
}

// NewRegistry returns the canonical four-tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: []Definition{
			{
				Name:        SemanticSearch,
				Description: "Similarity search over the document's content. Best first move for any factual question.",
				Params: []Param{
					{Name: "query", Type: "string", Description: "natural-language search query"},
				},
				Kind:     store.KindContent,
				Priority: 1,
			},
			{
				Name:        TitleSearch,
				Description: "Fetch full content of sections by exact title. Use after outline or extract_titles revealed relevant titles.",
				Params: []Param{
					{Name: "titles", Type: "string", Description: "section titles, one per line or comma separated"},
				},
				Kind:     store.KindContent,
				Priority: 2,
			},
			{
				Name:        Outline,
				Description: "Return the document's full chapter/title outline with page ranges. Takes no argument.",
				Params:      nil,
				Kind:        store.KindStructure,
				Priority:    3,
			},
			{
				Name:        ExtractTitles,
				Description: "Given the query, pick the 2-5 most relevant section titles from the outline.",
				Params: []Param{
					{Name: "query", Type: "string", Description: "the question the titles should cover"},
				},
				Kind:     store.KindStructure,
				Priority: 4,
			},
		},
	}
}

// Get returns the definition for a tool name.
func (r *Registry) Get(name string) (*Definition, error) {
	for i := range r.defs {
		if r.defs[i].Name == name {
			return &r.defs[i], nil
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

// Default returns the fallback tool used when a think decision cannot be
// parsed.
func (r *Registry) Default() *Definition {
	return &r.defs[0]
}

// Describe renders the registry for a think prompt, ordered by priority.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, d := range r.defs {
		b.WriteString(fmt.Sprintf("- %s", d.Name))
		if len(d.Params) > 0 {
			b.WriteString(fmt.Sprintf("(%s)", d.Params[0].Name))
		} else {
			b.WriteString("()")
		}
		b.WriteString(fmt.Sprintf(": %s\n", d.Description))
	}
	return b.String()
}

// Call binds the think-stage's single argument to the tool's first declared
// parameter, producing the action logged for the iteration.
func (d *Definition) Call(input string) store.Action {
	params := map[string]string{}
	if len(d.Params) > 0 {
		params[d.Params[0].Name] = input
	}
	return store.Action{Tool: d.Name, Params: params}
}

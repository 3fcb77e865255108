// Package decompose turns raw planning responses into validated subtask
// graphs. Planning output comes from a language model and is frequently
// malformed, so parsing degrades through four layers: strict structured
// parse, lenient JSON repair, natural-language extraction, and a last-resort
// single mega-task. Parse never fails for malformed input; only empty or
// too-short input surfaces a ParseError.
package decompose

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/swarmlab/waggle/pkg/models"
)

// Strategy names for Result.Strategy.
const (
	StrategyStructured = "structured"
	StrategyRepaired   = "repaired"
	StrategyExtracted  = "extracted"
	StrategyMegaTask   = "mega-task"
)

// listKeys are the payload keys probed, in order, for the subtask list.
var listKeys = []string{"subtasks", "tasks", "steps", "task_list"}

// Result is the outcome of parsing one planning response.
type Result struct {
	// Subtasks are the parsed subtasks. Empty when ParseError is set.
	Subtasks []*models.Subtask
	// Strategy names the layer that produced the subtasks.
	Strategy string
	// Reasoning describes how the response was interpreted. Recovered
	// output carries a "(repaired JSON)" or "mega-task" marker so callers
	// can distinguish it from trustworthy structured output.
	Reasoning string
	// ParseError explains total failure. It is a description, not an
	// error value: all layers failing is an expected outcome.
	ParseError string
}

// Options tunes parser heuristics. The keyword lists and length thresholds
// are deliberately fuzzy knobs, not invariants.
type Options struct {
	// MinItemLength rejects extracted list items shorter than this.
	MinItemLength int
	// MinExtractedItems is how many qualifying lines natural-language
	// extraction needs before its result is accepted.
	MinExtractedItems int
	// MinInputLength is the shortest input worth a mega-task fallback.
	MinInputLength int
	// MegaTaskTruncate caps the mega-task description length.
	MegaTaskTruncate int
	// TypeKeywords maps subtask types to the keywords that imply them.
	// Nil means DefaultTypeKeywords.
	TypeKeywords map[models.SubtaskType][]string
}

// DefaultOptions returns the options used by NewParser.
func DefaultOptions() Options {
	return Options{
		MinItemLength:     6,
		MinExtractedItems: 2,
		MinInputLength:    10,
		MegaTaskTruncate:  200,
	}
}

// Parser converts raw planning text into subtasks. Parsers are stateless
// and safe for concurrent use.
type Parser struct {
	opts Options
}

// NewParser creates a Parser with default options.
func NewParser() *Parser {
	return NewParserWithOptions(DefaultOptions())
}

// NewParserWithOptions creates a Parser with the given options. Zero-valued
// fields fall back to defaults.
func NewParserWithOptions(opts Options) *Parser {
	def := DefaultOptions()
	if opts.MinItemLength <= 0 {
		opts.MinItemLength = def.MinItemLength
	}
	if opts.MinExtractedItems <= 0 {
		opts.MinExtractedItems = def.MinExtractedItems
	}
	if opts.MinInputLength <= 0 {
		opts.MinInputLength = def.MinInputLength
	}
	if opts.MegaTaskTruncate <= 0 {
		opts.MegaTaskTruncate = def.MegaTaskTruncate
	}
	return &Parser{opts: opts}
}

// Parse converts a raw planning response into subtasks. It never returns an
// error: malformed input degrades through repair, extraction, and the
// mega-task fallback, and only empty input yields a ParseError result.
func (p *Parser) Parse(raw string) *Result {
	trimmed := strings.TrimSpace(raw)

	// Layer 0: strict structured parse.
	if subtasks, ok := p.parseStructured(trimmed); ok {
		return &Result{
			Subtasks:  subtasks,
			Strategy:  StrategyStructured,
			Reasoning: fmt.Sprintf("parsed %d subtasks from structured response", len(subtasks)),
		}
	}

	// Layer 1: lenient repair, then retry the structured parse.
	if repaired := RepairJSON(trimmed); repaired != trimmed {
		if subtasks, ok := p.parseStructured(repaired); ok {
			return &Result{
				Subtasks:  subtasks,
				Strategy:  StrategyRepaired,
				Reasoning: fmt.Sprintf("parsed %d subtasks after lenient repair (repaired JSON)", len(subtasks)),
			}
		}
	}

	// Layer 2: natural-language extraction.
	if subtasks, ok := p.extract(trimmed); ok {
		return &Result{
			Subtasks:  subtasks,
			Strategy:  StrategyExtracted,
			Reasoning: fmt.Sprintf("extracted %d subtasks from unstructured text", len(subtasks)),
		}
	}

	// Layer 3: mega-task fallback.
	if len(trimmed) >= p.opts.MinInputLength {
		desc := trimmed
		if len(desc) > p.opts.MegaTaskTruncate {
			cut := p.opts.MegaTaskTruncate
			// Back up to a rune boundary so multi-byte input stays valid.
			for cut > 0 && !utf8.RuneStart(desc[cut]) {
				cut--
			}
			desc = desc[:cut] + "..."
		}
		return &Result{
			Subtasks: []*models.Subtask{{
				ID:          "0",
				Description: desc,
				Type:        models.TypeImplement,
				Complexity:  5,
				Status:      models.StatusPending,
			}},
			Strategy:  StrategyMegaTask,
			Reasoning: "no structure recovered; emitting single mega-task",
		}
	}

	return &Result{
		ParseError: fmt.Sprintf("input too short to decompose (%d chars)", len(trimmed)),
	}
}

// fenceRe matches a fenced code block, with or without a language tag.
var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// stripFence removes a wrapping fenced code block if present.
func stripFence(s string) string {
	if m := fenceRe.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// parseStructured implements Layer 0. It accepts a bare array payload or an
// object with the list under any of listKeys, possibly wrapped in a fenced
// code block or surrounded by prose.
func (p *Parser) parseStructured(raw string) ([]*models.Subtask, bool) {
	payload, ok := locateJSON(stripFence(raw))
	if !ok {
		return nil, false
	}

	var items []gjson.Result
	switch {
	case payload.IsArray():
		items = payload.Array()
	case payload.IsObject():
		for _, key := range listKeys {
			if list := payload.Get(key); list.IsArray() {
				items = list.Array()
				break
			}
		}
	}
	if len(items) == 0 {
		return nil, false
	}

	subtasks := make([]*models.Subtask, 0, len(items))
	for i, item := range items {
		st := p.parseItem(item, i)
		if st == nil {
			continue
		}
		subtasks = append(subtasks, st)
	}
	if len(subtasks) == 0 {
		return nil, false
	}

	normalizeDependencies(subtasks)
	return subtasks, true
}

// locateJSON finds the JSON payload within a response that may carry
// surrounding prose. It prefers the whole document, then the outermost
// object, then the outermost array.
func locateJSON(s string) (gjson.Result, bool) {
	if gjson.Valid(s) {
		r := gjson.Parse(s)
		if r.IsArray() || r.IsObject() {
			return r, true
		}
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start == -1 || end <= start {
			continue
		}
		candidate := s[start : end+1]
		if gjson.Valid(candidate) {
			return gjson.Parse(candidate), true
		}
	}
	return gjson.Result{}, false
}

// parseItem converts one payload entry into a Subtask. Returns nil for
// entries with no usable description.
func (p *Parser) parseItem(item gjson.Result, index int) *models.Subtask {
	desc := firstString(item, "description", "desc")
	if strings.TrimSpace(desc) == "" {
		return nil
	}

	id := firstString(item, "id")
	if strings.TrimSpace(id) == "" {
		id = strconv.Itoa(index)
	}

	st := &models.Subtask{
		ID:          id,
		Description: strings.TrimSpace(desc),
		Type:        models.TypeImplement,
		Complexity:  3,
		Status:      models.StatusPending,
	}

	if t := models.SubtaskType(strings.ToLower(item.Get("type").String())); t.Valid() {
		st.Type = t
	}
	if c := item.Get("complexity"); c.Exists() {
		st.Complexity = models.ClampComplexity(int(c.Int()))
	}
	if par := firstResult(item, "parallelizable", "parallel"); par.Exists() {
		st.Parallelizable = par.Bool()
	}
	if deps := firstResult(item, "dependencies", "deps"); deps.IsArray() {
		for _, dep := range deps.Array() {
			st.Dependencies = append(st.Dependencies, dep.String())
		}
	}
	if mods := firstResult(item, "modifies", "files"); mods.IsArray() {
		for _, m := range mods.Array() {
			if s := m.String(); s != "" {
				st.Modifies = append(st.Modifies, s)
			}
		}
	}
	return st
}

// firstString returns the first non-empty string value among the keys.
func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// firstResult returns the first existing value among the keys.
func firstResult(item gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// normalizeDependencies resolves each subtask's dependency list to stable
// string IDs. String IDs take precedence; an entry that matches no ID but
// parses as an in-range integer is treated as a positional index. Entries
// that resolve to the subtask itself are dropped, as are out-of-range
// indices. Unresolvable string references are kept so the graph builder can
// report them.
func normalizeDependencies(subtasks []*models.Subtask) {
	known := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		known[st.ID] = true
	}

	for _, st := range subtasks {
		deps := st.Dependencies
		st.Dependencies = nil
		seen := make(map[string]bool, len(deps))
		for _, dep := range deps {
			resolved := dep
			if !known[dep] {
				if idx, err := strconv.Atoi(dep); err == nil {
					if idx < 0 || idx >= len(subtasks) {
						continue
					}
					resolved = subtasks[idx].ID
				}
			}
			if resolved == st.ID || seen[resolved] {
				continue
			}
			seen[resolved] = true
			st.Dependencies = append(st.Dependencies, resolved)
		}
	}
}

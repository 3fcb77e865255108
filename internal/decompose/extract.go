package decompose

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/swarmlab/waggle/pkg/models"
)

// Line patterns recognized by natural-language extraction, in priority
// order: numbered lists, bulleted lists (including markdown task-list
// items), and Task N:/Step N: headers.
var (
	numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletRe   = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
	checkboxRe = regexp.MustCompile(`^\s*[-*]\s*\[[ xX]\]\s+(.+)$`)
	headerRe   = regexp.MustCompile(`(?i)^\s*(?:task|step)\s+\d+\s*:\s*(.+)$`)
)

// DefaultTypeKeywords maps subtask types to the keywords that imply them.
// The lists are heuristics, tunable via Options.TypeKeywords.
var DefaultTypeKeywords = map[models.SubtaskType][]string{
	models.TypeResearch: {"investigate", "research", "analyze", "analyse", "explore", "study"},
	models.TypeDesign:   {"design", "plan", "architect"},
	models.TypeTest:     {"test", "verify", "validate"},
	models.TypeRefactor: {"refactor", "restructure", "clean up", "cleanup"},
	models.TypeDocument: {"document", "write docs", "readme"},
	models.TypeDeploy:   {"deploy", "ship", "release", "publish"},
}

// typeOrder fixes the scanning order so overlapping keyword hits resolve
// deterministically (refactor beats the implement default, research beats
// design for "analyze the design", and so on).
var typeOrder = []models.SubtaskType{
	models.TypeResearch,
	models.TypeDesign,
	models.TypeTest,
	models.TypeRefactor,
	models.TypeDocument,
	models.TypeDeploy,
}

// extract implements Layer 2: it recognizes list-shaped lines in free-form
// text and turns them into sequentially dependent subtasks. The result is
// accepted only when at least MinExtractedItems qualifying lines match one
// pattern class; a lone line falls through to the mega-task layer.
func (p *Parser) extract(raw string) ([]*models.Subtask, bool) {
	lines := strings.Split(raw, "\n")

	for _, matcher := range []func(string) (string, bool){
		matchNumbered, matchBullet, matchHeader,
	} {
		var items []string
		for _, line := range lines {
			text, ok := matcher(line)
			if !ok {
				continue
			}
			text = strings.TrimSpace(text)
			if len(text) < p.opts.MinItemLength {
				continue
			}
			items = append(items, text)
		}
		if len(items) >= p.opts.MinExtractedItems {
			return p.itemsToSubtasks(items), true
		}
	}
	return nil, false
}

func matchNumbered(line string) (string, bool) {
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

// matchBullet treats task-list checkboxes as bullets with the checkbox
// marker stripped, since every checkbox line is also a bullet line.
func matchBullet(line string) (string, bool) {
	if m := checkboxRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

func matchHeader(line string) (string, bool) {
	if m := headerRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

// itemsToSubtasks builds a sequential chain: item i depends on item i-1.
func (p *Parser) itemsToSubtasks(items []string) []*models.Subtask {
	subtasks := make([]*models.Subtask, len(items))
	for i, text := range items {
		st := &models.Subtask{
			ID:          strconv.Itoa(i),
			Description: text,
			Type:        p.inferType(text),
			Complexity:  3,
			Status:      models.StatusPending,
		}
		if i > 0 {
			st.Dependencies = []string{strconv.Itoa(i - 1)}
		}
		subtasks[i] = st
	}
	return subtasks
}

// inferType scans the item text against the keyword vocabularies and
// returns the first matching type, defaulting to implement.
func (p *Parser) inferType(text string) models.SubtaskType {
	keywords := p.opts.TypeKeywords
	if keywords == nil {
		keywords = DefaultTypeKeywords
	}
	lower := strings.ToLower(text)
	for _, t := range typeOrder {
		for _, kw := range keywords[t] {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return models.TypeImplement
}

package decompose

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/swarmlab/waggle/pkg/models"
)

func TestParseStructuredSingleSubtask(t *testing.T) {
	p := NewParser()
	res := p.Parse(`{"subtasks": [{"description":"A","type":"implement","complexity":3,"dependencies":[],"parallelizable":true}]}`)

	if res.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", res.ParseError)
	}
	if res.Strategy != StrategyStructured {
		t.Errorf("expected structured strategy, got %s", res.Strategy)
	}
	if len(res.Subtasks) != 1 {
		t.Fatalf("expected 1 subtask, got %d", len(res.Subtasks))
	}
	st := res.Subtasks[0]
	if st.Description != "A" {
		t.Errorf("expected description A, got %q", st.Description)
	}
	if st.Type != models.TypeImplement {
		t.Errorf("expected implement type, got %s", st.Type)
	}
	if !st.Parallelizable {
		t.Error("expected parallelizable subtask")
	}
}

func TestParseStructuredAlternateKeys(t *testing.T) {
	p := NewParser()

	for _, listKey := range []string{"subtasks", "tasks", "steps", "task_list"} {
		doc := `{"` + listKey + `": [{"desc":"first piece of work"},{"desc":"second piece of work","deps":["0"],"parallel":true}]}`
		res := p.Parse(doc)
		if res.ParseError != "" {
			t.Fatalf("key %s: unexpected parse error: %s", listKey, res.ParseError)
		}
		if len(res.Subtasks) != 2 {
			t.Fatalf("key %s: expected 2 subtasks, got %d", listKey, len(res.Subtasks))
		}
		if got := res.Subtasks[1].Dependencies; len(got) != 1 || got[0] != "0" {
			t.Errorf("key %s: expected dependency [0], got %v", listKey, got)
		}
		if !res.Subtasks[1].Parallelizable {
			t.Errorf("key %s: parallel alias not honored", listKey)
		}
	}
}

func TestParseBareArrayRoot(t *testing.T) {
	p := NewParser()
	res := p.Parse(`[{"description":"only item in a bare list"}]`)

	if len(res.Subtasks) != 1 {
		t.Fatalf("expected 1 subtask, got %d", len(res.Subtasks))
	}
	if res.Subtasks[0].ID != "0" {
		t.Errorf("expected generated id 0, got %s", res.Subtasks[0].ID)
	}
}

func TestParseFencedPayload(t *testing.T) {
	p := NewParser()
	doc := "Here is the plan:\n```json\n{\"tasks\":[{\"description\":\"inside a fence\"},{\"description\":\"also fenced\"}]}\n```\nLet me know."
	res := p.Parse(doc)

	if res.Strategy != StrategyStructured {
		t.Fatalf("expected structured strategy, got %s (err=%s)", res.Strategy, res.ParseError)
	}
	if len(res.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(res.Subtasks))
	}
}

func TestParseIntegerDependencyIndices(t *testing.T) {
	p := NewParser()
	doc := `{"subtasks":[
		{"id":"setup","description":"set things up"},
		{"id":"build","description":"build the thing","dependencies":[0]},
		{"id":"verify","description":"verify the thing","dependencies":[1, 99]}
	]}`
	res := p.Parse(doc)

	if len(res.Subtasks) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(res.Subtasks))
	}
	if got := res.Subtasks[1].Dependencies; len(got) != 1 || got[0] != "setup" {
		t.Errorf("expected index 0 normalized to setup, got %v", got)
	}
	// Out-of-range index 99 is dropped, index 1 resolves to "build".
	if got := res.Subtasks[2].Dependencies; len(got) != 1 || got[0] != "build" {
		t.Errorf("expected [build], got %v", got)
	}
}

func TestParseStringIDsTakePrecedenceOverIndices(t *testing.T) {
	p := NewParser()
	// "1" is both a valid id and a plausible index; the id match wins.
	doc := `{"subtasks":[
		{"id":"1","description":"task named one"},
		{"id":"2","description":"task named two","dependencies":["1"]}
	]}`
	res := p.Parse(doc)

	if got := res.Subtasks[1].Dependencies; len(got) != 1 || got[0] != "1" {
		t.Errorf("expected dependency kept as id 1, got %v", got)
	}
}

func TestParseStripsSelfDependency(t *testing.T) {
	p := NewParser()
	doc := `{"subtasks":[{"id":"a","description":"self-referencing task","dependencies":["a"]}]}`
	res := p.Parse(doc)

	if len(res.Subtasks) != 1 {
		t.Fatalf("expected 1 subtask, got %d", len(res.Subtasks))
	}
	if len(res.Subtasks[0].Dependencies) != 0 {
		t.Errorf("expected self-dependency stripped, got %v", res.Subtasks[0].Dependencies)
	}
}

func TestParseClampsComplexity(t *testing.T) {
	p := NewParser()
	doc := `{"subtasks":[
		{"description":"way too hard","complexity":42},
		{"description":"way too easy","complexity":-3}
	]}`
	res := p.Parse(doc)

	if res.Subtasks[0].Complexity != 10 {
		t.Errorf("expected complexity clamped to 10, got %d", res.Subtasks[0].Complexity)
	}
	if res.Subtasks[1].Complexity != 1 {
		t.Errorf("expected complexity clamped to 1, got %d", res.Subtasks[1].Complexity)
	}
}

func TestParseIdempotentOnStructuredInput(t *testing.T) {
	p := NewParser()
	first := p.Parse(`{"subtasks":[
		{"id":"a","description":"first","type":"research","complexity":2},
		{"id":"b","description":"second","type":"implement","dependencies":["a"],"parallelizable":true}
	]}`)
	if first.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", first.ParseError)
	}

	// Re-serialize the result and parse it again.
	data, err := json.Marshal(map[string]any{"subtasks": first.Subtasks})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second := p.Parse(string(data))

	if len(second.Subtasks) != len(first.Subtasks) {
		t.Fatalf("expected %d subtasks, got %d", len(first.Subtasks), len(second.Subtasks))
	}
	for i := range first.Subtasks {
		a, b := first.Subtasks[i], second.Subtasks[i]
		if a.ID != b.ID || a.Description != b.Description || a.Type != b.Type {
			t.Errorf("subtask %d changed across re-parse: %+v vs %+v", i, a, b)
		}
	}
}

func TestParseMegaTaskFallback(t *testing.T) {
	p := NewParser()
	input := "Please take care of the whole migration to the new storage backend. " + strings.Repeat("More context. ", 30)
	res := p.Parse(input)

	if res.Strategy != StrategyMegaTask {
		t.Fatalf("expected mega-task strategy, got %s", res.Strategy)
	}
	if len(res.Subtasks) != 1 {
		t.Fatalf("expected 1 subtask, got %d", len(res.Subtasks))
	}
	st := res.Subtasks[0]
	if st.Type != models.TypeImplement || st.Complexity != 5 {
		t.Errorf("expected implement/5 mega-task, got %s/%d", st.Type, st.Complexity)
	}
	if !strings.HasSuffix(st.Description, "...") {
		t.Error("expected truncated description with ellipsis")
	}
	if len(st.Description) > 210 {
		t.Errorf("description too long: %d chars", len(st.Description))
	}
	if !strings.Contains(res.Reasoning, "mega-task") {
		t.Errorf("expected mega-task marker in reasoning, got %q", res.Reasoning)
	}
}

func TestParseTooShortInput(t *testing.T) {
	p := NewParser()
	res := p.Parse("OK")

	if len(res.Subtasks) != 0 {
		t.Errorf("expected 0 subtasks, got %d", len(res.Subtasks))
	}
	if res.ParseError == "" {
		t.Error("expected parse error for trivial input")
	}
}

func TestParseEmptyInput(t *testing.T) {
	p := NewParser()
	res := p.Parse("   \n\t ")

	if res.ParseError == "" {
		t.Error("expected parse error for empty input")
	}
}

func TestParseModifiesList(t *testing.T) {
	input := `{"subtasks": [
		{"id": "auth", "description": "Harden auth", "modifies": ["src/auth.ts", "src/session.ts", ""]}
	]}`

	res := NewParser().Parse(input)
	if res.ParseError != "" {
		t.Fatalf("ParseError = %q", res.ParseError)
	}
	got := res.Subtasks[0].Modifies
	if len(got) != 2 || got[0] != "src/auth.ts" || got[1] != "src/session.ts" {
		t.Errorf("Modifies = %v", got)
	}
}

func TestMegaTaskTruncatesOnRuneBoundary(t *testing.T) {
	p := NewParserWithOptions(Options{MegaTaskTruncate: 15})
	res := p.Parse(strings.Repeat("ü", 50))

	if res.Strategy != StrategyMegaTask {
		t.Fatalf("Strategy = %q, want %q", res.Strategy, StrategyMegaTask)
	}
	desc := res.Subtasks[0].Description
	if !utf8.ValidString(desc) {
		t.Errorf("truncated description is not valid UTF-8: %q", desc)
	}
	if !strings.HasSuffix(desc, "...") {
		t.Errorf("expected ellipsis suffix, got %q", desc)
	}
	if len(desc) > 15+len("...") {
		t.Errorf("description too long: %d bytes", len(desc))
	}
}

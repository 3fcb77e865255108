package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/pkg/models"
)

func TestScriptedWorkerEchoDefault(t *testing.T) {
	w := NewScriptedWorker("agent-1")
	b := board.New()

	out, err := w.Execute(context.Background(), models.Subtask{
		ID:          "0",
		Description: "survey the codebase",
		Type:        models.TypeResearch,
	}, b)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", out.AgentID)
	}
	if out.Content != "completed: survey the codebase" {
		t.Errorf("Content = %q", out.Content)
	}
	if out.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", out.Confidence)
	}
}

func TestScriptedWorkerScriptedResult(t *testing.T) {
	w := NewScriptedWorker("agent-1")
	b := board.New()

	w.Script("t1", ScriptedResult{
		Output: &models.AgentOutput{Content: "custom result", Confidence: 0.8},
		Findings: []models.Finding{
			{Topic: "auth", Content: "token refresh is broken", Type: models.FindingWarning, Confidence: 0.9},
		},
	})

	out, err := w.Execute(context.Background(), models.Subtask{ID: "t1"}, b)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Content != "custom result" {
		t.Errorf("Content = %q", out.Content)
	}

	posted := b.Query(&board.Filter{Topic: "auth"})
	if len(posted) != 1 {
		t.Fatalf("board has %d auth findings, want 1", len(posted))
	}
	if posted[0].AgentID != "agent-1" {
		t.Errorf("finding AgentID = %q, want agent-1", posted[0].AgentID)
	}
}

func TestScriptedWorkerError(t *testing.T) {
	w := NewScriptedWorker("agent-1")
	wantErr := errors.New("boom")
	w.Script("t1", ScriptedResult{Err: wantErr})

	_, err := w.Execute(context.Background(), models.Subtask{ID: "t1"}, board.New())
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestScriptedFactorySharesScripts(t *testing.T) {
	shared, factory := NewScriptedFactory()
	shared.Script("t1", ScriptedResult{
		Output: &models.AgentOutput{Content: "shared"},
	})

	b := board.New()
	out, err := factory("agent-7").Execute(context.Background(), models.Subtask{ID: "t1"}, b)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.AgentID != "agent-7" {
		t.Errorf("AgentID = %q, want agent-7", out.AgentID)
	}
	if out.Content != "shared" {
		t.Errorf("Content = %q, want shared", out.Content)
	}

	if got := shared.Executed(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("Executed() = %v, want [t1]", got)
	}
}

func TestParseWorkerResponseStructured(t *testing.T) {
	raw := `Here is my result:
{
  "content": "refactored the auth module",
  "confidence": 0.85,
  "findings": [
    {"topic": "auth", "content": "sessions lacked expiry", "type": "discovery", "confidence": 0.9},
    {"topic": "auth", "content": ""}
  ],
  "files": [
    {"path": "src/auth.ts", "type": "modify", "new_content": "..."},
    {"path": ""}
  ]
}`

	out := parseWorkerResponse("agent-1", models.Subtask{ID: "t1", Type: models.TypeImplement}, raw)
	if out.Content != "refactored the auth module" {
		t.Errorf("Content = %q", out.Content)
	}
	if out.Confidence != 0.85 {
		t.Errorf("Confidence = %f, want 0.85", out.Confidence)
	}
	if len(out.Findings) != 1 {
		t.Fatalf("Findings = %d, want 1 (empty content dropped)", len(out.Findings))
	}
	if out.Findings[0].AgentID != "agent-1" {
		t.Errorf("finding AgentID = %q", out.Findings[0].AgentID)
	}
	if len(out.FilesModified) != 1 {
		t.Fatalf("FilesModified = %d, want 1 (empty path dropped)", len(out.FilesModified))
	}
	if out.FilesModified[0].Path != "src/auth.ts" {
		t.Errorf("file path = %q", out.FilesModified[0].Path)
	}
}

func TestParseWorkerResponsePlainText(t *testing.T) {
	out := parseWorkerResponse("agent-1", models.Subtask{ID: "t1"}, "I could not produce JSON, but the task is done.")
	if out.Content != "I could not produce JSON, but the task is done." {
		t.Errorf("Content = %q", out.Content)
	}
	if out.Confidence != 0.5 {
		t.Errorf("Confidence = %f, want fallback 0.5", out.Confidence)
	}
	if len(out.Findings) != 0 {
		t.Errorf("Findings = %d, want 0", len(out.Findings))
	}
}

func TestParseWorkerResponseFindingTypeDefault(t *testing.T) {
	raw := `{"content": "done", "findings": [{"topic": "x", "content": "something"}]}`
	out := parseWorkerResponse("agent-1", models.Subtask{ID: "t1"}, raw)
	if len(out.Findings) != 1 {
		t.Fatalf("Findings = %d, want 1", len(out.Findings))
	}
	if out.Findings[0].Type != models.FindingDiscovery {
		t.Errorf("Type = %q, want discovery", out.Findings[0].Type)
	}
}

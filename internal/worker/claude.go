package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/internal/llm"
	"github.com/swarmlab/waggle/pkg/models"
)

const claudeSystemPrompt = `You are a focused worker agent in a multi-agent swarm.
You receive one subtask and shared findings from sibling agents.
Respond with JSON:
{
  "content": "your result for the subtask",
  "confidence": 0.0-1.0,
  "findings": [{"topic": "...", "content": "...", "type": "discovery|analysis|solution|warning", "confidence": 0.0-1.0}],
  "files": [{"path": "...", "type": "create|modify|delete", "new_content": "..."}]
}
Only report findings that sibling agents would benefit from.`

// maxSharedFindings caps how much board context is fed back into prompts.
const maxSharedFindings = 20

// ClaudeWorker executes subtasks through the Anthropic API.
type ClaudeWorker struct {
	agentID string
	client  *llm.Client
}

// NewClaudeWorker creates a Claude-backed worker for an agent ID.
func NewClaudeWorker(agentID string, client *llm.Client) *ClaudeWorker {
	return &ClaudeWorker{agentID: agentID, client: client}
}

// NewClaudeFactory returns a Factory producing Claude-backed workers that
// share one API client.
func NewClaudeFactory(client *llm.Client) Factory {
	return func(agentID string) Worker {
		return NewClaudeWorker(agentID, client)
	}
}

// Execute runs the subtask through the model, posts any reported findings
// to the board, and returns the structured output.
func (w *ClaudeWorker) Execute(ctx context.Context, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error) {
	prompt := w.buildPrompt(subtask, b)

	raw, err := w.client.Complete(ctx, claudeSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("execute subtask %s: %w", subtask.ID, err)
	}

	output := parseWorkerResponse(w.agentID, subtask, raw)
	for i, f := range output.Findings {
		output.Findings[i] = b.Post(f.AgentID, f.Topic, f.Content, f.Type, f.Confidence)
	}
	return output, nil
}

func (w *ClaudeWorker) buildPrompt(subtask models.Subtask, b *board.Board) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subtask %s (%s): %s\n", subtask.ID, subtask.Type, subtask.Description)
	if len(subtask.Modifies) > 0 {
		fmt.Fprintf(&sb, "Resources you hold claims on: %s\n", strings.Join(subtask.Modifies, ", "))
	}

	shared := b.Query(nil)
	if len(shared) > maxSharedFindings {
		shared = shared[len(shared)-maxSharedFindings:]
	}
	if len(shared) > 0 {
		sb.WriteString("\nFindings from sibling agents:\n")
		for _, f := range shared {
			if f.AgentID == w.agentID {
				continue
			}
			fmt.Fprintf(&sb, "- [%s/%s] %s: %s\n", f.AgentID, f.Type, f.Topic, f.Content)
		}
	}
	return sb.String()
}

// parseWorkerResponse extracts structured output from a model response.
// Malformed responses degrade to a plain-text output rather than failing
// the subtask.
func parseWorkerResponse(agentID string, subtask models.Subtask, raw string) *models.AgentOutput {
	out := &models.AgentOutput{
		AgentID:    agentID,
		Content:    strings.TrimSpace(raw),
		Type:       string(subtask.Type),
		Confidence: 0.5,
	}

	doc := locateJSONObject(raw)
	if doc == "" || !gjson.Valid(doc) {
		return out
	}
	parsed := gjson.Parse(doc)
	if !parsed.Get("content").Exists() {
		return out
	}

	out.Content = parsed.Get("content").String()
	if c := parsed.Get("confidence"); c.Exists() {
		out.Confidence = clampUnit(c.Float())
	}
	for _, f := range parsed.Get("findings").Array() {
		finding := models.Finding{
			AgentID:    agentID,
			Topic:      f.Get("topic").String(),
			Content:    f.Get("content").String(),
			Type:       models.FindingType(f.Get("type").String()),
			Confidence: clampUnit(f.Get("confidence").Float()),
		}
		if finding.Content == "" {
			continue
		}
		if finding.Type == "" {
			finding.Type = models.FindingDiscovery
		}
		out.Findings = append(out.Findings, finding)
	}
	for _, fc := range parsed.Get("files").Array() {
		change := models.FileChange{
			Path:       fc.Get("path").String(),
			Type:       fc.Get("type").String(),
			NewContent: fc.Get("new_content").String(),
		}
		if change.Path == "" {
			continue
		}
		if change.Type == "" {
			change.Type = "modify"
		}
		out.FilesModified = append(out.FilesModified, change)
	}
	return out
}

// locateJSONObject finds the outermost JSON object in a response that may
// be wrapped in prose or a code fence.
func locateJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

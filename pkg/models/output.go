package models

// FileChange describes one file an agent modified while executing a subtask.
type FileChange struct {
	// Path is the resource identifier, typically a repository-relative path.
	Path string `json:"path"`
	// Type is the kind of change (create, modify, delete).
	Type string `json:"type"`
	// NewContent is the full content the agent produced for the file.
	NewContent string `json:"new_content"`
}

// AgentOutput is the result a worker hands back after executing a subtask.
type AgentOutput struct {
	// AgentID identifies the worker that produced this output.
	AgentID string `json:"agent_id"`
	// Content is the primary textual result.
	Content string `json:"content"`
	// Type classifies the output (mirrors the subtask type by convention).
	Type string `json:"type"`
	// Confidence is the worker's confidence in its result (0-1).
	Confidence float64 `json:"confidence"`
	// Findings are free-text discoveries made along the way.
	Findings []string `json:"findings,omitempty"`
	// FilesModified lists the files the worker changed.
	FilesModified []FileChange `json:"files_modified,omitempty"`
}

// SynthesisConflict records two or more outputs disagreeing about the same
// resource's content.
type SynthesisConflict struct {
	// Resource is the contested resource, typically a file path.
	Resource string `json:"resource"`
	// AgentIDs lists the competing agents in first-seen order.
	AgentIDs []string `json:"agent_ids"`
	// WinnerID is the agent whose content the resolver selected.
	WinnerID string `json:"winner_id"`
	// Reason explains how the winner was chosen.
	Reason string `json:"reason"`
}

// SynthesisStats summarizes a synthesis run.
type SynthesisStats struct {
	// InputCount is the number of agent outputs synthesized.
	InputCount int `json:"input_count"`
	// DeduplicationRate is the fraction of findings removed as duplicates
	// (0 when no findings were present).
	DeduplicationRate float64 `json:"deduplication_rate"`
}

// SynthesisResult is the merged result of all workers' outputs.
type SynthesisResult struct {
	// Output is the best-effort merged result. Always populated, even
	// when conflicts were detected.
	Output string `json:"output"`
	// Findings are the deduplicated findings across all outputs.
	Findings []string `json:"findings,omitempty"`
	// Files are the merged file changes after conflict resolution.
	Files []FileChange `json:"files,omitempty"`
	// Conflicts lists every file-level disagreement encountered.
	Conflicts []SynthesisConflict `json:"conflicts,omitempty"`
	// Stats summarizes the run.
	Stats SynthesisStats `json:"stats"`
}

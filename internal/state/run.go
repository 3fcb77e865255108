package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swarmlab/waggle/pkg/models"
)

// RunStatus represents the status of a swarm run.
type RunStatus string

const (
	RunActive      RunStatus = "active"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunCanceled    RunStatus = "canceled"
	RunInterrupted RunStatus = "interrupted"
)

// Run represents one swarm invocation from goal to synthesis.
type Run struct {
	ID            string     `json:"id"`
	Goal          string     `json:"goal"`
	ParseStrategy string     `json:"parse_strategy"`
	TokenBudget   int64      `json:"token_budget"`
	TokensUsed    int64      `json:"tokens_used"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Status        RunStatus  `json:"status"`
}

// SubtaskRecord is the persisted form of a scheduled subtask.
type SubtaskRecord struct {
	RunID       string   `json:"run_id"`
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Complexity  int      `json:"complexity"`
	DependsOn   []string `json:"depends_on"`
	AgentID     string   `json:"agent_id"`
	Status      string   `json:"status"`
	Wave        int      `json:"wave"`
	Error       string   `json:"error"`
}

// Run CRUD operations

// CreateRun creates a new run record.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, goal, parse_strategy, token_budget, tokens_used, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Goal, r.ParseStrategy, r.TokenBudget, r.TokensUsed, formatTime(r.StartedAt), string(r.Status))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when not found.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, goal, parse_strategy, token_budget, tokens_used, started_at, finished_at, status
		FROM runs WHERE id = ?
	`, id)

	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.Goal, &r.ParseStrategy, &r.TokenBudget, &r.TokensUsed, &startedAt, &finishedAt, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// UpdateRun updates mutable run fields.
func (db *DB) UpdateRun(r *Run) error {
	var finishedAt any
	if r.FinishedAt != nil {
		finishedAt = formatTime(*r.FinishedAt)
	}
	_, err := db.Exec(`
		UPDATE runs SET parse_strategy = ?, tokens_used = ?, finished_at = ?, status = ?
		WHERE id = ?
	`, r.ParseStrategy, r.TokensUsed, finishedAt, string(r.Status), r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns runs ordered newest first, limited to n (0 = all).
func (db *DB) ListRuns(n int) ([]*Run, error) {
	query := `
		SELECT id, goal, parse_strategy, token_budget, tokens_used, started_at, finished_at, status
		FROM runs ORDER BY started_at DESC
	`
	args := []any{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Goal, &r.ParseStrategy, &r.TokenBudget, &r.TokensUsed, &startedAt, &finishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// ListActiveRuns returns runs still marked active, oldest first.
func (db *DB) ListActiveRuns() ([]*Run, error) {
	rows, err := db.Query(`
		SELECT id, goal, parse_strategy, token_budget, tokens_used, started_at, finished_at, status
		FROM runs WHERE status = ? ORDER BY started_at ASC
	`, string(RunActive))
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Goal, &r.ParseStrategy, &r.TokenBudget, &r.TokensUsed, &startedAt, &finishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// MarkInterrupted flags all active runs as interrupted. Called at startup so
// a crashed process does not leave runs permanently active. Returns the
// number of runs updated.
func (db *DB) MarkInterrupted() (int64, error) {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ?
	`, string(RunInterrupted), formatTime(time.Now()), string(RunActive))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// Subtask CRUD operations

// SaveSubtask inserts or replaces a subtask record.
func (db *DB) SaveSubtask(rec *SubtaskRecord) error {
	dependsOn, err := json.Marshal(rec.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	_, err = db.Exec(`
		INSERT OR REPLACE INTO subtasks (run_id, id, description, type, complexity, depends_on, agent_id, status, wave, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.ID, rec.Description, rec.Type, rec.Complexity, string(dependsOn), rec.AgentID, rec.Status, rec.Wave, rec.Error)
	if err != nil {
		return fmt.Errorf("save subtask: %w", err)
	}
	return nil
}

// GetSubtasks returns all subtask records for a run, in wave order.
func (db *DB) GetSubtasks(runID string) ([]*SubtaskRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, id, description, type, complexity, depends_on, agent_id, status, wave, error
		FROM subtasks WHERE run_id = ? ORDER BY wave, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get subtasks: %w", err)
	}
	defer rows.Close()

	var recs []*SubtaskRecord
	for rows.Next() {
		var rec SubtaskRecord
		var dependsOn sql.NullString
		var agentID, errMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.ID, &rec.Description, &rec.Type, &rec.Complexity, &dependsOn, &agentID, &rec.Status, &rec.Wave, &errMsg); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		if dependsOn.Valid && dependsOn.String != "" {
			if err := json.Unmarshal([]byte(dependsOn.String), &rec.DependsOn); err != nil {
				return nil, fmt.Errorf("unmarshal depends_on: %w", err)
			}
		}
		rec.AgentID = agentID.String
		rec.Error = errMsg.String
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// UpdateSubtaskStatus updates the status, agent, and error of one subtask.
func (db *DB) UpdateSubtaskStatus(runID, id, status, agentID, errMsg string) error {
	_, err := db.Exec(`
		UPDATE subtasks SET status = ?, agent_id = ?, error = ? WHERE run_id = ? AND id = ?
	`, status, agentID, errMsg, runID, id)
	if err != nil {
		return fmt.Errorf("update subtask status: %w", err)
	}
	return nil
}

// Finding persistence

// SaveFinding archives a board finding for a run.
func (db *DB) SaveFinding(runID string, f models.Finding) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO findings (id, run_id, agent_id, topic, content, type, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, runID, f.AgentID, f.Topic, f.Content, string(f.Type), f.Confidence, formatTime(f.Timestamp))
	if err != nil {
		return fmt.Errorf("save finding: %w", err)
	}
	return nil
}

// GetFindings returns archived findings for a run in post order.
func (db *DB) GetFindings(runID string) ([]models.Finding, error) {
	rows, err := db.Query(`
		SELECT id, agent_id, topic, content, type, confidence, created_at
		FROM findings WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get findings: %w", err)
	}
	defer rows.Close()

	var findings []models.Finding
	for rows.Next() {
		var f models.Finding
		var createdAt string
		if err := rows.Scan(&f.ID, &f.AgentID, &f.Topic, &f.Content, &f.Type, &f.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Timestamp, _ = parseTime(createdAt)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

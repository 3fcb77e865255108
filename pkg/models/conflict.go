package models

// ConflictType classifies a decomposition-time conflict.
type ConflictType string

const (
	// ConflictWriteWrite indicates two subtasks both expect to modify
	// the same resource.
	ConflictWriteWrite ConflictType = "write-write"
)

// Conflict is an advisory record that two subtasks would contend for the
// same resource if scheduled in the same wave. The orchestration loop uses
// these to decide whether to serialize the pair; nothing is blocked here.
type Conflict struct {
	// Type is the conflict classification.
	Type ConflictType `json:"type"`
	// Resource is the contested resource identifier.
	Resource string `json:"resource"`
	// SubtaskIDs are the two contending subtasks, in input order.
	SubtaskIDs [2]string `json:"subtask_ids"`
}

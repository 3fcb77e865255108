package models

// SubtaskStatus represents the current state of a subtask.
type SubtaskStatus string

const (
	// StatusPending indicates the subtask has not started.
	StatusPending SubtaskStatus = "pending"
	// StatusRunning indicates a worker is executing the subtask.
	StatusRunning SubtaskStatus = "running"
	// StatusDone indicates the subtask completed successfully.
	StatusDone SubtaskStatus = "done"
	// StatusFailed indicates the subtask failed.
	StatusFailed SubtaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// SubtaskType classifies the kind of work a subtask represents.
type SubtaskType string

const (
	TypeResearch  SubtaskType = "research"
	TypeDesign    SubtaskType = "design"
	TypeImplement SubtaskType = "implement"
	TypeTest      SubtaskType = "test"
	TypeRefactor  SubtaskType = "refactor"
	TypeDocument  SubtaskType = "document"
	TypeDeploy    SubtaskType = "deploy"
)

// Valid returns true if the type is a known value.
func (t SubtaskType) Valid() bool {
	switch t {
	case TypeResearch, TypeDesign, TypeImplement, TypeTest, TypeRefactor, TypeDocument, TypeDeploy:
		return true
	default:
		return false
	}
}

// Subtask is one decomposed unit of the original goal.
type Subtask struct {
	// ID is the stable identifier for this subtask.
	ID string `json:"id"`
	// Description explains what the subtask should accomplish.
	Description string `json:"description"`
	// Type classifies the work (research, design, implement, ...).
	Type SubtaskType `json:"type"`
	// Complexity estimates difficulty on a 1-10 scale.
	Complexity int `json:"complexity"`
	// Dependencies lists subtask IDs that must complete before this one.
	Dependencies []string `json:"dependencies,omitempty"`
	// Parallelizable indicates the subtask may run alongside others.
	Parallelizable bool `json:"parallelizable"`
	// Modifies lists resources (typically file paths) the subtask is
	// expected to write to. Advisory; the board enforces actual claims.
	Modifies []string `json:"modifies,omitempty"`
	// Status is the current execution state.
	Status SubtaskStatus `json:"status"`
}

// ClampComplexity returns the complexity forced into the 1-10 range.
func ClampComplexity(c int) int {
	if c < 1 {
		return 1
	}
	if c > 10 {
		return 10
	}
	return c
}

// DependsOnSelf reports whether the subtask lists itself as a dependency.
// Such entries violate the model invariant and are stripped at parse time.
func (s *Subtask) DependsOnSelf() bool {
	for _, dep := range s.Dependencies {
		if dep == s.ID {
			return true
		}
	}
	return false
}

package models

import "time"

// FindingType classifies a piece of shared knowledge. The set is open:
// these constants cover the common cases but any string is accepted.
type FindingType string

const (
	FindingDiscovery FindingType = "discovery"
	FindingAnalysis  FindingType = "analysis"
	FindingSolution  FindingType = "solution"
	FindingWarning   FindingType = "warning"
)

// Finding is an immutable piece of shared knowledge posted by one agent
// for others to discover. The board only ever appends findings.
type Finding struct {
	// ID is assigned by the board when the finding is posted.
	ID string `json:"id"`
	// AgentID identifies the posting agent.
	AgentID string `json:"agent_id"`
	// Topic is the subject the finding relates to.
	Topic string `json:"topic"`
	// Content is the finding body.
	Content string `json:"content"`
	// Type classifies the finding (open set).
	Type FindingType `json:"type"`
	// Confidence is the poster's confidence in the finding (0-1).
	Confidence float64 `json:"confidence"`
	// Timestamp is when the finding was posted.
	Timestamp time.Time `json:"timestamp"`
}

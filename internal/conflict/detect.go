// Package conflict detects resource contention between subtasks before they
// are dispatched. Detection is purely advisory: the orchestration loop uses
// it to decide whether two subtasks that would share a wave should be
// serialized instead. Nothing here blocks execution.
package conflict

import (
	"sort"

	"github.com/swarmlab/waggle/pkg/models"
)

// Detect compares every pair of subtasks' Modifies sets and returns one
// write-write conflict record per shared resource per pair. The comparison
// is O(n²) over the subtask count, which is expected to be tens, not
// thousands.
func Detect(subtasks []*models.Subtask) []models.Conflict {
	var conflicts []models.Conflict

	for i := 0; i < len(subtasks); i++ {
		for j := i + 1; j < len(subtasks); j++ {
			shared := intersect(subtasks[i].Modifies, subtasks[j].Modifies)
			for _, resource := range shared {
				conflicts = append(conflicts, models.Conflict{
					Type:       models.ConflictWriteWrite,
					Resource:   resource,
					SubtaskIDs: [2]string{subtasks[i].ID, subtasks[j].ID},
				})
			}
		}
	}
	return conflicts
}

// intersect returns the resources present in both sets, sorted for
// deterministic output.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inA := make(map[string]bool, len(a))
	for _, r := range a {
		inA[r] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, r := range b {
		if inA[r] && !seen[r] {
			seen[r] = true
			shared = append(shared, r)
		}
	}
	sort.Strings(shared)
	return shared
}

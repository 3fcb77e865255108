package conflict

import (
	"strings"

	"github.com/swarmlab/waggle/pkg/models"
)

// Overlap describes a path-level overlap between two subtasks' resource
// sets. Unlike Detect's exact-match conflicts, overlaps also catch a
// directory prefix containing another subtask's file.
type Overlap struct {
	Subtask1ID      string
	Subtask2ID      string
	OverlappingPath string
}

// PreflightAnalysis is the result of pre-dispatch overlap detection.
type PreflightAnalysis struct {
	// Overlaps lists all detected resource overlaps.
	Overlaps []Overlap
	// RecommendSerial indicates some subtasks should be serialized.
	RecommendSerial bool
	// MaxParallelism is the recommended concurrent worker ceiling
	// considering overlaps.
	MaxParallelism int
}

// AnalyzePreflight checks all subtasks for resource overlaps before
// scheduling begins, so contending subtasks can be separated into different
// waves early instead of failing claims mid-run.
func AnalyzePreflight(subtasks []*models.Subtask) *PreflightAnalysis {
	result := &PreflightAnalysis{MaxParallelism: len(subtasks)}

	for i := 0; i < len(subtasks); i++ {
		for j := i + 1; j < len(subtasks); j++ {
			for _, r1 := range subtasks[i].Modifies {
				for _, r2 := range subtasks[j].Modifies {
					if pathsOverlap(r1, r2) {
						result.Overlaps = append(result.Overlaps, Overlap{
							Subtask1ID:      subtasks[i].ID,
							Subtask2ID:      subtasks[j].ID,
							OverlappingPath: r1,
						})
					}
				}
			}
		}
	}

	if len(result.Overlaps) > 0 {
		result.RecommendSerial = true
		result.MaxParallelism = maxParallelism(subtasks, result.Overlaps)
	}
	return result
}

// pathsOverlap reports whether two resource paths collide: identical paths,
// or one being a directory prefix of the other.
func pathsOverlap(p1, p2 string) bool {
	p1 = strings.TrimPrefix(p1, "/")
	p2 = strings.TrimPrefix(p2, "/")
	if p1 == p2 {
		return true
	}
	return strings.HasPrefix(p1, ensureSlash(p2)) || strings.HasPrefix(p2, ensureSlash(p1))
}

func ensureSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// maxParallelism estimates how many subtasks can run concurrently without
// overlap using greedy graph coloring: contenders get different colors, and
// the largest color class bounds useful parallelism.
func maxParallelism(subtasks []*models.Subtask, overlaps []Overlap) int {
	contends := make(map[string]map[string]bool, len(subtasks))
	for _, st := range subtasks {
		contends[st.ID] = make(map[string]bool)
	}
	for _, o := range overlaps {
		contends[o.Subtask1ID][o.Subtask2ID] = true
		contends[o.Subtask2ID][o.Subtask1ID] = true
	}

	colors := make(map[string]int, len(subtasks))
	for _, st := range subtasks {
		used := make(map[int]bool)
		for other := range contends[st.ID] {
			if c, ok := colors[other]; ok {
				used[c] = true
			}
		}
		c := 0
		for used[c] {
			c++
		}
		colors[st.ID] = c
	}

	classSizes := make(map[int]int)
	for _, c := range colors {
		classSizes[c]++
	}
	max := 0
	for _, n := range classSizes {
		if n > max {
			max = n
		}
	}
	return max
}

package decompose

// decompositionPrompt is the prompt template handed to the planner. The
// parser tolerates deviations from this shape, but asking precisely keeps
// the structured layer on the happy path.
const decompositionPrompt = `Break this goal into parallelizable subtasks. Each subtask should be sized for a single agent to complete independently.

Goal:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "subtasks": [
    {
      "id": "unique-id",
      "description": "What this subtask accomplishes",
      "type": "research|design|implement|test|refactor|document|deploy",
      "complexity": 3,
      "dependencies": ["id of prerequisite subtask"],
      "parallelizable": true,
      "modifies": ["src/auth/login.go"]
    }
  ]
}

Rules:
- "modifies" MUST list every file or resource the subtask will write to.
  Two subtasks with overlapping "modifies" sets will be serialized.
- "dependencies" may only reference ids of earlier subtasks; never the
  subtask's own id.
- complexity is an integer from 1 (trivial) to 10 (very hard).
- Prefer many small independent subtasks over few large ones.`

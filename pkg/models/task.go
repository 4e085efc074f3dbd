package models

// TaskRole distinguishes the prompt half of a task pair from the response half.
type TaskRole string

const (
	RoleUser      TaskRole = "user"
	RoleAssistant TaskRole = "assistant"
)

// TaskStatus is the monotonic lifecycle state of a Task. Transitions obey
// the DAG queued -> processing -> {completed, failed}; no backward edge is
// ever permitted (spec.md §8 invariant).
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// rank orders statuses along the lifecycle DAG for monotonicity checks.
var rank = map[TaskStatus]int{
	TaskStatusQueued:     0,
	TaskStatusProcessing: 1,
	TaskStatusCompleted:  2,
	TaskStatusFailed:     2, // completed/failed are siblings: both terminal, neither precedes the other
}

// CanTransition reports whether moving from `from` to `to` is a legal,
// forward-only transition. Terminal statuses (completed, failed) never
// transition further, per spec.md §3 ("once terminal, immutable").
func CanTransition(from, to TaskStatus) bool {
	if from == TaskStatusCompleted || from == TaskStatusFailed {
		return false
	}
	if from == to {
		return false
	}
	return rank[to] >= rank[from]
}

// Task is the unit of dispatched work. Tasks are always created in pairs:
// one user Task (the prompt) and one assistant Task (the eventual response),
// linked by RelatedTaskID.
type Task struct {
	Base
	ProjectID     string         `json:"project_id"`
	AgentID       string         `json:"agent_id"`
	Role          TaskRole       `json:"role"`
	Content       string         `json:"content"`
	Status        TaskStatus     `json:"status"`
	RelatedTaskID string         `json:"related_task_id,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	// CancelRequested is set by the SSEBridge interrupt endpoint and polled
	// by the Runner's CancellationOracle (spec.md §4.6 step 6) alongside
	// the in-process cancel signal. It is not a lifecycle status: it can
	// be set while the task is still queued or processing, and never
	// forces a status transition by itself.
	CancelRequested bool `json:"cancel_requested,omitempty"`
}

// CollectionTasks is the Store collection name for Task documents.
const CollectionTasks = "tasks"

// IsActive reports whether the task still counts against the admission
// gate's at-most-one-active-task rule (spec.md §4.4).
func (t *Task) IsActive() bool {
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

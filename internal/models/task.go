package models

import "time"

// TaskKind distinguishes the two background job types the pipeline runs.
type TaskKind string

const (
	TaskConvert TaskKind = "convert"
	TaskConcat  TaskKind = "concat"
)

// TaskStatus is a task's lifecycle state. Transitions are monotone:
// pending → processing → {completed, failed}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is a unit of background work: convert or concatenate.
type Task struct {
	ID          string         `json:"id"`
	Kind        TaskKind       `json:"kind"`
	OwnerID     string         `json:"-"`
	InputPaths  []string       `json:"-"`
	Parameters  map[string]any `json:"-"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	OutputPath  string         `json:"-"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

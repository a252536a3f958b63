package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of an async search task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// SearchTask represents an async price comparison
type SearchTask struct {
	mu sync.RWMutex

	ID          string
	Query       string
	Status      TaskStatus
	Message     string
	Result      *SearchResult
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TaskView is the JSON form of a task, taken under the task lock
type TaskView struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Status      TaskStatus    `json:"status"`
	Message     string        `json:"message"`
	Result      *SearchResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// NewSearchTask creates a new queued search task
func NewSearchTask(query string) *SearchTask {
	return &SearchTask{
		ID:        "task_" + uuid.NewString(),
		Query:     query,
		Status:    TaskStatusQueued,
		Message:   "Task queued for processing",
		CreatedAt: time.Now(),
	}
}

// Start marks the task as processing
func (t *SearchTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Status = TaskStatusProcessing
	t.Message = "Searching all sources..."
	now := time.Now()
	t.StartedAt = &now
}

// Complete marks the task as completed with result
func (t *SearchTask) Complete(result *SearchResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Status = TaskStatusCompleted
	t.Message = "Search completed successfully"
	t.Result = result
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed with error
func (t *SearchTask) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Status = TaskStatusFailed
	t.Message = "Search failed"
	t.Error = reason
	now := time.Now()
	t.CompletedAt = &now
}

// IsCompleted returns true if the task is in a final state
func (t *SearchTask) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still running
func (t *SearchTask) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

// CurrentStatus returns the task status
func (t *SearchTask) CurrentStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// Duration returns the duration of the task
func (t *SearchTask) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartedAt == nil {
		return 0
	}

	endTime := time.Now()
	if t.CompletedAt != nil {
		endTime = *t.CompletedAt
	}

	return endTime.Sub(*t.StartedAt)
}

// View returns a consistent snapshot of the task
func (t *SearchTask) View() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TaskView{
		ID:          t.ID,
		Query:       t.Query,
		Status:      t.Status,
		Message:     t.Message,
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pricecompare/logger"
	"pricecompare/metrics"
	"pricecompare/models"
	"pricecompare/scraper"
)

// ErrQueueFull is returned when a task cannot be queued
var ErrQueueFull = errors.New("task queue is full")

// SearchFunc runs one search for a task
type SearchFunc func(ctx context.Context, query string) (*models.SearchResult, error)

// TaskStats is a point-in-time view of the task manager
type TaskStats struct {
	TotalTasks    int                       `json:"total_tasks"`
	ActiveWorkers int                       `json:"active_workers"`
	MaxWorkers    int                       `json:"max_workers"`
	QueueSize     int                       `json:"queue_size"`
	TasksByStatus map[models.TaskStatus]int `json:"tasks_by_status"`
}

// TaskManager runs async search tasks on a fixed pool of workers
type TaskManager struct {
	tasks           map[string]*models.SearchTask
	taskQueue       chan *models.SearchTask
	maxWorkers      int
	search          SearchFunc
	retention       time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	active          atomic.Int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskManager creates a task manager. Call Start to begin processing.
func NewTaskManager(search SearchFunc, maxWorkers, queueSize int, retention, cleanupInterval time.Duration) *TaskManager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	if retention <= 0 {
		retention = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &TaskManager{
		tasks:           make(map[string]*models.SearchTask),
		taskQueue:       make(chan *models.SearchTask, queueSize),
		maxWorkers:      maxWorkers,
		search:          search,
		retention:       retention,
		cleanupInterval: cleanupInterval,
	}
}

// Start launches the workers and the cleanup loop. They stop when ctx is
// done or Stop is called.
func (tm *TaskManager) Start(ctx context.Context) {
	ctx, tm.cancel = context.WithCancel(ctx)

	for i := 0; i < tm.maxWorkers; i++ {
		tm.wg.Add(1)
		go tm.worker(ctx)
	}

	tm.wg.Add(1)
	go tm.cleanupLoop(ctx)

	logger.Log.Info().Int("workers", tm.maxWorkers).Msg("Task manager started")
}

// Submit queues a search. A full queue fails the task immediately; the task
// is still returned so its failure can be reported.
func (tm *TaskManager) Submit(query string) (*models.SearchTask, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, scraper.ErrEmptyQuery
	}

	task := models.NewSearchTask(query)

	tm.mutex.Lock()
	tm.tasks[task.ID] = task
	tm.mutex.Unlock()

	select {
	case tm.taskQueue <- task:
		metrics.RecordTask(string(models.TaskStatusQueued))
		logger.Log.Info().Str("task_id", task.ID).Str("query", query).Msg("Task submitted")
		return task, nil
	default:
		task.Fail(ErrQueueFull.Error())
		metrics.RecordTask(string(models.TaskStatusFailed))
		logger.Log.Warn().Str("task_id", task.ID).Msg("Task rejected, queue full")
		return task, ErrQueueFull
	}
}

// GetTask returns a task by ID
func (tm *TaskManager) GetTask(taskID string) (*models.SearchTask, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	task, exists := tm.tasks[taskID]
	return task, exists
}

// CleanupOldTasks removes finished tasks that completed before the
// retention window and returns how many were removed
func (tm *TaskManager) CleanupOldTasks() int {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	cutoff := time.Now().Add(-tm.retention)
	removed := 0
	for taskID, task := range tm.tasks {
		view := task.View()
		if task.IsCompleted() && view.CompletedAt != nil && view.CompletedAt.Before(cutoff) {
			delete(tm.tasks, taskID)
			removed++
		}
	}
	if removed > 0 {
		logger.Log.Debug().Int("removed", removed).Msg("Cleaned up old tasks")
	}
	return removed
}

// GetStats returns task manager statistics
func (tm *TaskManager) GetStats() TaskStats {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := TaskStats{
		TotalTasks:    len(tm.tasks),
		ActiveWorkers: int(tm.active.Load()),
		MaxWorkers:    tm.maxWorkers,
		QueueSize:     len(tm.taskQueue),
		TasksByStatus: make(map[models.TaskStatus]int),
	}
	for _, task := range tm.tasks {
		stats.TasksByStatus[task.CurrentStatus()]++
	}
	return stats
}

// Stop stops the workers, waits for running searches to return and fails
// whatever is still queued
func (tm *TaskManager) Stop() {
	if tm.cancel == nil {
		return
	}
	tm.cancel()
	tm.wg.Wait()

	for {
		select {
		case task := <-tm.taskQueue:
			task.Fail("server shutting down")
		default:
			logger.Log.Info().Msg("Task manager stopped")
			return
		}
	}
}

func (tm *TaskManager) worker(ctx context.Context) {
	defer tm.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-tm.taskQueue:
			if ctx.Err() != nil {
				task.Fail("server shutting down")
				return
			}
			tm.process(ctx, task)
		}
	}
}

func (tm *TaskManager) process(ctx context.Context, task *models.SearchTask) {
	tm.active.Add(1)
	defer tm.active.Add(-1)

	task.Start()
	metrics.RecordTask(string(models.TaskStatusProcessing))

	result, err := tm.search(ctx, task.Query)
	if err != nil {
		task.Fail(err.Error())
		metrics.RecordTask(string(models.TaskStatusFailed))
		logger.Log.Warn().Err(err).Str("task_id", task.ID).Msg("Task failed")
		return
	}

	task.Complete(result)
	metrics.RecordTask(string(models.TaskStatusCompleted))
	logger.Log.Info().
		Str("task_id", task.ID).
		Int("products", len(result.Products)).
		Dur("duration", task.Duration()).
		Msg("Task completed")
}

func (tm *TaskManager) cleanupLoop(ctx context.Context) {
	defer tm.wg.Done()

	ticker := time.NewTicker(tm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tm.CleanupOldTasks()
		}
	}
}

package ingest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loupelabs/loupe/pkg/observability"
)

// TaskState describes where an ingestion task is in its lifecycle.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Task is a point-in-time snapshot of one ingestion task.
type Task struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      TaskState `json:"state"`
	Collection string    `json:"collection"`
	Chunks     int       `json:"chunks"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker registers asynchronous ingestion tasks. Finished tasks are kept
// for the configured TTL so clients can poll their outcome, then pruned.
//
// All methods are safe for concurrent access.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]Task
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker creates a tracker that retains finished tasks for ttl.
// A non-positive ttl defaults to one hour.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{
		tasks: make(map[string]Task),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create registers a pending task and returns its id.
func (t *Tracker) Create(kind, collection string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()

	id := uuid.New().String()
	now := t.now()
	t.tasks[id] = Task{
		ID:         id,
		Kind:       kind,
		State:      TaskPending,
		Collection: collection,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return id
}

// Start marks the task running.
func (t *Tracker) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return
	}
	task.State = TaskRunning
	task.UpdatedAt = t.now()
	t.tasks[id] = task
}

// Complete marks the task finished with the number of chunks stored.
func (t *Tracker) Complete(id string, chunks int) {
	t.mu.Lock()
	task, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	task.State = TaskCompleted
	task.Chunks = chunks
	task.UpdatedAt = t.now()
	t.tasks[id] = task
	t.mu.Unlock()

	observability.IngestTasksTotal.WithLabelValues(task.Kind, "completed").Inc()
}

// Fail records the task error.
func (t *Tracker) Fail(id string, err error) {
	t.mu.Lock()
	task, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	task.State = TaskFailed
	if err != nil {
		task.Error = err.Error()
	}
	task.UpdatedAt = t.now()
	t.tasks[id] = task
	t.mu.Unlock()

	observability.IngestTasksTotal.WithLabelValues(task.Kind, "failed").Inc()
	slog.Warn("ingestion task failed", "task", id, "kind", task.Kind, "error", err)
}

// Get returns a snapshot of the task.
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	task, ok := t.tasks[id]
	return task, ok
}

// prune drops finished tasks older than the TTL. Callers hold mu.
func (t *Tracker) prune() {
	cutoff := t.now().Add(-t.ttl)
	for id, task := range t.tasks {
		if task.State != TaskCompleted && task.State != TaskFailed {
			continue
		}
		if task.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
		}
	}
}

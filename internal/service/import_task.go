package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ImportTask tracks one background bulk add. Only one runs at a time;
// starting a new one cancels the previous.
type ImportTask struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"` // "running", "done", "error", "cancelled"
	Total     int           `json:"total"`
	Current   int           `json:"current"`
	Feed      string        `json:"feed,omitempty"`
	Result    *ImportResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

type ImportTaskService interface {
	Start(total int) (string, context.Context)
	Update(current int, feed string)
	Complete(result ImportResult)
	Fail(err error)
	Get() *ImportTask
	Cancel() bool
}

type importTaskManager struct {
	mu      sync.RWMutex
	current *ImportTask
	cancel  context.CancelFunc
}

func NewImportTaskService() ImportTaskService {
	return &importTaskManager{}
}

func (m *importTaskManager) Start(total int) (string, context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	id := uuid.New().String()
	m.current = &ImportTask{
		ID:        id,
		Status:    "running",
		Total:     total,
		CreatedAt: time.Now(),
	}
	return id, ctx
}

func (m *importTaskManager) Update(current int, feed string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Status == "running" {
		m.current.Current = current
		m.current.Feed = feed
	}
}

func (m *importTaskManager) Complete(result ImportResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Status = "done"
		m.current.Result = &result
		m.current.Feed = ""
	}
}

func (m *importTaskManager) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Status = "error"
		m.current.Error = err.Error()
		m.current.Feed = ""
	}
}

func (m *importTaskManager) Get() *ImportTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	task := *m.current
	if m.current.Result != nil {
		result := *m.current.Result
		task.Result = &result
	}
	return &task
}

func (m *importTaskManager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Status != "running" {
		return false
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.current.Status = "cancelled"
	m.current.Feed = ""
	return true
}

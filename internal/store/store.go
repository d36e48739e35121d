package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yasef05/video-downloader-backend/internal/model"
)

// ErrNotFound is returned when no job exists for the requested identifier.
var ErrNotFound = errors.New("job not found")

// JobStore tracks download jobs by identifier. Get serves any number of
// concurrent pollers; Update is called only by the single runner goroutine
// that owns the job, so read-modify-write per entry is safe.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, id string, mutate func(*model.Job)) error
}

// MemoryStore keeps jobs in process memory. State is lost on restart; job
// records are never evicted.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// Create inserts a new job. The job is visible to Get as soon as Create
// returns, before any download work starts.
func (m *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt

	m.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a snapshot of the job. Callers own the returned copy and
// never observe a partially applied update.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies mutate to the stored job under the write lock.
func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*model.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}

	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

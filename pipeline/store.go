package pipeline

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for job ids the store has never seen or that were
// deleted.
var ErrNotFound = errors.New("job not found")

// Store keeps job records in memory. Records live until explicitly deleted;
// there is no TTL. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new record. The caller owns id uniqueness; uuids make
// collisions a non-issue.
func (s *Store) Create(job *Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Delete removes the record. Jobs are never removed any other way.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// Count reports how many records the store holds.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// CountByStatus breaks the record count down for the stats endpoint.
func (s *Store) CountByStatus() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, 4)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

// update applies fn to the live record. A missing id is a no-op: the job was
// deleted while its unit was in flight, and the late updates just vanish
// with it.
func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// setProcessing moves a queued job to processing.
func (s *Store) setProcessing(id string) {
	s.update(id, func(j *Job) {
		if j.Status == StatusQueued {
			j.Status = StatusProcessing
		}
	})
}

// setProgress raises the progress checkpoint. Progress never moves backward.
func (s *Store) setProgress(id string, progress int) {
	s.update(id, func(j *Job) {
		if progress > j.Progress {
			j.Progress = progress
		}
	})
}

// complete records the final result.
func (s *Store) complete(id string, res *Result) {
	s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = ProgressDone
		j.Result = res
	})
}

// fail records the terminal error.
func (s *Store) fail(id string, msg string) {
	s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = msg
	})
}

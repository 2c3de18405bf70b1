package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs"
)

// Store keeps jobs in memory; state is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.TrainingJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.TrainingJob)}
}

// SaveJob stores a copy of job, replacing any earlier state.
func (s *Store) SaveJob(_ context.Context, job *jobs.TrainingJob) error {
	if job.JobID == "" {
		return fmt.Errorf("Store.SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = clone(job)
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	return clone(job), nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.TrainingJob, error) {
	s.mu.RLock()
	result := make([]*jobs.TrainingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		result = append(result, clone(job))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].JobID < result[j].JobID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.TrainingJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func clone(job *jobs.TrainingJob) *jobs.TrainingJob {
	c := *job
	if job.Result != nil {
		r := *job.Result
		c.Result = &r
	}
	return &c
}

var _ jobs.JobStore = (*Store)(nil)

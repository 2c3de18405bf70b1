package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.TrainingJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last state %+v", jobID, want, job)
	return nil
}

func TestQueueRunsJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 0, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job *jobs.TrainingJob) error {
		job.Result = &jobs.RunResult{RunID: "run-1", HistoryRows: 20}
		return nil
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	job := &jobs.TrainingJob{StartDate: "2024-10-01", EndDate: "2024-10-05"}
	if err := q.PublishTraining(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("expected a generated job ID")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.RunID != "run-1" {
		t.Errorf("expected result to be stored, got %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	q.SetBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	q.Start(ctx, func(ctx context.Context, job *jobs.TrainingJob) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("bucket unavailable")
		}
		return nil
	})

	job := &jobs.TrainingJob{StartDate: "2024-10-01", EndDate: "2024-10-02"}
	if err := q.PublishTraining(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 {
		t.Errorf("expected 1 retry, got %d", done.RetryCount)
	}
	if done.Error != "" {
		t.Errorf("expected error cleared after success, got %q", done.Error)
	}
	q.Close()
}

func TestQueueFailsAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	q.SetBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	q.Start(ctx, func(ctx context.Context, job *jobs.TrainingJob) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("no daily files")
	})

	job := &jobs.TrainingJob{StartDate: "2024-10-01", EndDate: "2024-10-02"}
	q.PublishTraining(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "no daily files" {
		t.Errorf("unexpected error message %q", failed.Error)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	q.Close()
}

func TestQueuePublishAfterClose(t *testing.T) {
	q := NewQueue(1, 0, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := q.PublishTraining(context.Background(), &jobs.TrainingJob{})
	if !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		store.SaveJob(ctx, &jobs.TrainingJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d jobs, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].JobID)
				}
			}
		})
	}
}

func TestStoreGetJobNotFound(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "missing")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	job := &jobs.TrainingJob{JobID: "x", Status: jobs.JobStatusPending, Result: &jobs.RunResult{RunID: "r"}}
	store.SaveJob(ctx, job)

	job.Status = jobs.JobStatusFailed
	job.Result.RunID = "changed"

	got, _ := store.GetJob(ctx, "x")
	if got.Status != jobs.JobStatusPending || got.Result.RunID != "r" {
		t.Errorf("store state leaked caller mutation: %+v", got)
	}
}

package scheduler

import (
	"context"
	"testing"

	"github.com/stockhunter/stockhunter/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
}

func (j fakeJob) Name() string              { return j.name }
func (j fakeJob) Schedule() string          { return j.schedule }
func (j fakeJob) Run(context.Context) error { return nil }

func TestAddJob(t *testing.T) {
	s := New(logger.NewNop())

	job := fakeJob{name: "sync", schedule: "0 30 17 * * 1-5"}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob(job); err == nil {
		t.Error("duplicate job name must be rejected")
	}
	if err := s.AddJob(fakeJob{name: "bad", schedule: "not a schedule"}); err == nil {
		t.Error("invalid cron expression must be rejected")
	}

	jobs := s.GetAllJobs()
	if len(jobs) != 1 || jobs[0] != "sync" {
		t.Errorf("jobs = %v, want [sync]", jobs)
	}
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.RunJob("nope"); err == nil {
		t.Error("expected an error for an unknown job")
	}
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	h.AddResult(JobResult{JobName: "sync", Success: true})
	h.AddResult(JobResult{JobName: "sync", Success: false, Error: "boom"})

	if got := h.GetSuccessRate(); got != 0.5 {
		t.Errorf("success rate = %v, want 0.5", got)
	}
	if got := len(h.GetFailedResults()); got != 1 {
		t.Errorf("failed results = %d, want 1", got)
	}
}

package testsupport

import (
	"context"
	"sync"

	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/scheduler"
)

// FakeJob is the scripted state of one fake scheduler job.
type FakeJob struct {
	Request   scheduler.JobRequest
	Commenced bool
	Completed bool
	Failed    bool
}

// FakeScheduler is an in-memory scheduler.Client. Jobs start pending; tests
// move them along with Start, Finish and Fail.
type FakeScheduler struct {
	mu       sync.Mutex
	next     queue.JobID
	jobs     map[queue.JobID]*FakeJob
	requests []scheduler.JobRequest

	// SubmitErr, when set, is returned by every Submit call.
	SubmitErr error
	// StatusErr, when set, is returned by every status query.
	StatusErr error
}

// NewFakeScheduler returns a fake whose first job id is 100.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{next: 100, jobs: make(map[queue.JobID]*FakeJob)}
}

func (f *FakeScheduler) Kind() scheduler.Kind { return scheduler.Kind("fake") }

func (f *FakeScheduler) Submit(_ context.Context, req scheduler.JobRequest) (queue.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return queue.NoJob, f.SubmitErr
	}
	id := f.next
	f.next++
	f.jobs[id] = &FakeJob{Request: req}
	f.requests = append(f.requests, req)
	return id, nil
}

func (f *FakeScheduler) HasCommenced(_ context.Context, id queue.JobID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return false, f.StatusErr
	}
	job := f.jobs[id]
	return job != nil && (job.Commenced || job.Completed), nil
}

func (f *FakeScheduler) HasCompleted(_ context.Context, id queue.JobID, checkFailure bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return false, f.StatusErr
	}
	job := f.jobs[id]
	if job == nil || !job.Completed {
		return false, nil
	}
	if checkFailure && job.Failed {
		return true, &scheduler.JobFailedError{JobID: id, Output: "exit_status 1"}
	}
	return true, nil
}

func (f *FakeScheduler) HasFailed(_ context.Context, id queue.JobID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return false, f.StatusErr
	}
	job := f.jobs[id]
	if job == nil {
		return true, nil
	}
	return job.Completed && job.Failed, nil
}

// Register records a job that was submitted by an earlier process.
func (f *FakeScheduler) Register(id queue.JobID, job FakeJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = &job
	if id >= f.next {
		f.next = id + 1
	}
}

// Start marks a job running.
func (f *FakeScheduler) Start(id queue.JobID) { f.update(id, func(j *FakeJob) { j.Commenced = true }) }

// Finish marks a job completed successfully.
func (f *FakeScheduler) Finish(id queue.JobID) { f.update(id, func(j *FakeJob) { j.Completed = true }) }

// Fail marks a job completed with a non-zero exit status.
func (f *FakeScheduler) Fail(id queue.JobID) {
	f.update(id, func(j *FakeJob) {
		j.Completed = true
		j.Failed = true
	})
}

// Forget drops the job so the scheduler no longer knows about it.
func (f *FakeScheduler) Forget(id queue.JobID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
}

// Requests returns every submitted request in order.
func (f *FakeScheduler) Requests() []scheduler.JobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduler.JobRequest(nil), f.requests...)
}

func (f *FakeScheduler) update(id queue.JobID, fn func(*FakeJob)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		fn(job)
	}
}

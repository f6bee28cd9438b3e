package nemulo

import (
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// Job is a wrapper for a piece of work that should be executed by the job
// pool.
type Job struct {
	// Duration is the time it took the job to run. It's set regardless of
	// whether the job's finished state was executed, not executed, or errored.
	Duration time.Duration

	// Err is an error that the job produced, if any.
	Err error

	// Executed is whether the job "did work", signaled by it returning true.
	Executed bool

	// F is the function which makes up the job's workload.
	F func() (bool, error)

	// Name is a name for the job which is helpful for informational and
	// debugging purposes.
	Name string
}

// NewJob initializes and returns a new Job.
func NewJob(name string, f func() (bool, error)) *Job {
	return &Job{Name: name, F: f}
}

// Pool is a worker group that runs a number of jobs at a configured
// concurrency.
type Pool struct {
	// Jobs is a channel over which jobs for the current round are sent.
	Jobs chan *Job

	// JobsAll is a slice of all the jobs that were fed into the pool on the
	// last run.
	JobsAll []*Job

	// JobsErrored is a slice of jobs that errored on the last run.
	JobsErrored []*Job

	// JobsExecuted is a slice of jobs that were executed on the last run.
	JobsExecuted []*Job

	concurrency    int
	jobsInternal   chan *Job
	jobsFeederDone chan struct{}
	log            LoggerInterface
	mu             sync.Mutex
	roundNum       int
	roundStarted   bool
	wg             sync.WaitGroup
}

// NewPool initializes a new pool with the given jobs and at the given
// concurrency.
func NewPool(log LoggerInterface, concurrency int) *Pool {
	return &Pool{
		concurrency: concurrency,
		log:         log,
	}
}

// JobErrors is a helper that extracts the errors from all jobs that errored on
// the last run.
func (p *Pool) JobErrors() []error {
	var errs []error

	for _, job := range p.JobsErrored {
		errs = append(errs, job.Err)
	}

	return errs
}

// StartRound begins an execution round. Internal statistics and other tracking
// is all reset from the last one.
func (p *Pool) StartRound(roundNum int) {
	if p.roundStarted {
		panic("StartRound already called (call Wait before calling it again)")
	}

	p.log.Debugf("pool: Starting round %v at concurrency %v", roundNum, p.concurrency)

	p.Jobs = make(chan *Job, 500)
	p.JobsAll = nil
	p.JobsErrored = nil
	p.JobsExecuted = nil
	p.jobsFeederDone = make(chan struct{})
	p.jobsInternal = make(chan *Job, 500)
	p.roundNum = roundNum
	p.roundStarted = true

	// Worker Goroutines
	for i := 0; i < p.concurrency; i++ {
		workerNum := i
		go func() {
			for job := range p.jobsInternal {
				p.workJob(workerNum, job)
			}
		}()
	}

	// Job feeder
	go func() {
		for job := range p.Jobs {
			p.mu.Lock()
			p.JobsAll = append(p.JobsAll, job)
			p.mu.Unlock()

			p.wg.Add(1)
			p.jobsInternal <- job
		}

		// Runs after Jobs has been closed.
		close(p.jobsFeederDone)
	}()
}

// Wait waits until all jobs are finished and stops the pool.
//
// Returns true if the round of jobs all executed successfully, and false
// otherwise. In the latter case, the caller should stop and observe the
// contents of Errors.
func (p *Pool) Wait() bool {
	if !p.roundStarted {
		panic("Can't wait on a job pool that's not primed (call StartRound first)")
	}

	// First signal over the jobs chan that all work has been enqueued.
	close(p.Jobs)

	// Now wait for the job feeder to be finished so that we know all jobs have
	// been enqueued in jobsInternal.
	<-p.jobsFeederDone

	p.log.Debugf("pool: Waiting for %v job(s) to be done", len(p.JobsAll))

	// Now wait for all those jobs to be done.
	p.wg.Wait()

	// Drops workers out of their current round of work.
	close(p.jobsInternal)

	p.roundStarted = false

	return len(p.JobsErrored) < 1
}

// Works an individual job by running it and recording its results. Panics
// inside the job are recovered and recorded as errors.
func (p *Pool) workJob(workerNum int, job *Job) {
	defer p.wg.Done()

	start := time.Now()

	defer func() {
		job.Duration = time.Since(start)

		if r := recover(); r != nil {
			job.Err = xerrors.Errorf("job panicked: %v", r)
			job.Executed = false

			p.mu.Lock()
			p.JobsErrored = append(p.JobsErrored, job)
			p.mu.Unlock()
		}
	}()

	executed, err := job.F()

	job.Executed = executed
	job.Err = err

	p.mu.Lock()
	if err != nil {
		p.JobsErrored = append(p.JobsErrored, job)
	}
	if executed {
		p.JobsExecuted = append(p.JobsExecuted, job)
	}
	p.mu.Unlock()

	p.log.Debugf("pool: Worker %v finished job %q in %v", workerNum, job.Name, time.Since(start))
}

package nemulo

import (
	"os"
	"sync"
	"time"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Public
//
//
//
//////////////////////////////////////////////////////////////////////////////

// Args are the set of arguments accepted by NewContext.
type Args struct {
	Concurrency int
	Forced      bool
	Log         LoggerInterface
	Pool        *Pool
	SourceDir   string
	TargetDir   string
}

// Context contains useful state that can be used by a user-provided build
// function.
type Context struct {
	// Concurrency is the number of concurrent workers to run during the build
	// step.
	Concurrency int

	// Jobs is a channel over which jobs to be done are transmitted.
	Jobs chan *Job

	// Log is a logger that can be used to print information.
	Log LoggerInterface

	// SourceDir is the directory containing source files.
	SourceDir string

	// Stats tracks various statistics about the build process.
	//
	// Statistics are reset between build loops, but are cumulative between
	// build phases within a loop (i.e. calls to Wait).
	Stats *Stats

	// TargetDir is the directory where the site will be built to.
	TargetDir string

	// fileModTimeCache remembers the last modified times of files.
	fileModTimeCache *FileModTimeCache

	// forced indicates whether change checking should be bypassed.
	forced bool

	// pool is the job pool used to build the static site.
	pool *Pool
}

// NewContext initializes and returns a new Context.
func NewContext(args *Args) *Context {
	c := &Context{
		Concurrency: args.Concurrency,
		Log:         args.Log,
		SourceDir:   args.SourceDir,
		Stats:       &Stats{},
		TargetDir:   args.TargetDir,

		fileModTimeCache: NewFileModTimeCache(args.Log),
		forced:           args.Forced,
		pool:             args.Pool,
	}

	if args.Pool != nil {
		c.Jobs = args.Pool.Jobs
	}

	return c
}

// AddJob is a shortcut for adding a new job to the Jobs channel.
func (c *Context) AddJob(name string, f func() (bool, error)) {
	// Prefer the pool's channel because it's replaced on every round and a
	// forced clone may hold a stale reference.
	if c.pool != nil {
		c.pool.Jobs <- NewJob(name, f)
		return
	}

	c.Jobs <- NewJob(name, f)
}

// IsUnchanged returns whether the target path's modified time has changed since
// the last time it was checked. It also saves the last modified time for
// future checks.
func (c *Context) IsUnchanged(path string) bool {
	return c.fileModTimeCache.isUnchanged(path)
}

// Forced returns whether change checking is disabled in the current context.
//
// Functions using a forced context still return the right value for their
// unchanged return, but execute all their work.
func (c *Context) Forced() bool {
	return c.forced
}

// ForcedContext returns a copy of the current Context for which change
// checking is disabled.
//
// Functions using a forced context still return the right value for their
// unchanged return, but execute all their work.
func (c *Context) ForcedContext() *Context {
	forceC := c.clone()
	forceC.forced = true
	return forceC
}

// Wait waits on the job pool to execute its current round of jobs.
//
// Returns true if the round of jobs all executed successfully, and false
// otherwise. In the latter case, the caller should stop and observe the
// contents of Errors.
func (c *Context) Wait() bool {
	if c.pool == nil {
		return true
	}

	ok := c.pool.Wait()

	c.Stats.JobsErrored = append(c.Stats.JobsErrored, c.pool.JobsErrored...)
	c.Stats.JobsExecuted = append(c.Stats.JobsExecuted, c.pool.JobsExecuted...)
	c.Stats.NumJobs += len(c.pool.JobsAll)

	// Start the pool again, which also has the side effect of reinitializing
	// anything that needs to be reinitialized.
	c.pool.StartRound(c.pool.roundNum + 1)
	c.Jobs = c.pool.Jobs

	return ok
}

// Stats tracks various statistics about the build process.
type Stats struct {
	// JobsErrored is a slice of jobs that errored on the last run.
	JobsErrored []*Job

	// JobsExecuted is a slice of jobs that were executed on the last run.
	JobsExecuted []*Job

	// NumJobs is the total number of jobs generated for the last run.
	NumJobs int

	// Start is the start time of the build.
	Start time.Time
}

// Reset resets statistics.
func (s *Stats) Reset() {
	s.JobsErrored = nil
	s.JobsExecuted = nil
	s.NumJobs = 0
	s.Start = time.Now()
}

// FileModTimeCache tracks the last modified time of files seen so a
// determination can be made as to whether they need to be recompiled.
type FileModTimeCache struct {
	log              LoggerInterface
	mu               sync.Mutex
	pathToModTimeMap map[string]time.Time
}

// NewFileModTimeCache returns a new FileModTimeCache.
func NewFileModTimeCache(log LoggerInterface) *FileModTimeCache {
	return &FileModTimeCache{
		log:              log,
		pathToModTimeMap: make(map[string]time.Time),
	}
}

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

// clone clones the current Context.
func (c *Context) clone() *Context {
	return &Context{
		Concurrency: c.Concurrency,
		Jobs:        c.Jobs,
		Log:         c.Log,
		SourceDir:   c.SourceDir,
		Stats:       c.Stats,
		TargetDir:   c.TargetDir,

		fileModTimeCache: c.fileModTimeCache,
		forced:           c.forced,
		pool:             c.pool,
	}
}

// isUnchanged returns whether the target path's modified time has changed since
// the last time it was checked. It also saves the last modified time for
// future checks.
func (c *FileModTimeCache) isUnchanged(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Errorf("Error stat'ing file: %v", err)
		}
		return false
	}

	modTime := stat.ModTime()

	c.mu.Lock()
	lastModTime, ok := c.pathToModTimeMap[path]
	c.pathToModTimeMap[path] = modTime
	c.mu.Unlock()

	if !ok {
		return false
	}

	changed := lastModTime.Before(modTime)
	if !changed {
		c.log.Debugf("No changes to source: %s", path)
	}

	return !changed
}

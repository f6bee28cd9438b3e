package nemulo

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
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

// Config contains configuration.
type Config struct {
	// Concurrency is the number of concurrent workers to run during the build
	// step.
	//
	// Defaults to 5.
	Concurrency int

	// Forced disables change checking for every build so that all targets are
	// rebuilt.
	Forced bool

	// Log specifies a logger to use.
	//
	// Defaults to an instance of Logger running at informational level.
	Log LoggerInterface

	// SourceDir is the directory containing source files.
	//
	// Defaults to ".".
	SourceDir string

	// TargetDir is the directory where the site will be built to.
	//
	// Defaults to ".".
	TargetDir string

	// WatchDirs are additional directories that are watched for changes when
	// running a build loop. A change in one of them forces a full rebuild
	// because targets don't track them as dependencies (templates are the
	// common case).
	WatchDirs []string
}

// BuildFunc is a user-provided function that enqueues a site's build work on
// a Context. It returns errors that occurred outside of jobs.
type BuildFunc func(*Context) []error

// Build is one of the main entry points to the program. Call this to build
// only one time.
//
// Exits with a non-zero status if any error occurred during the build.
func Build(config *Config, f BuildFunc) {
	config = fillDefaults(config)
	c := newBuildContext(config)

	if errs := runBuild(c, f, 0); errs != nil {
		os.Exit(1)
	}
}

// BuildLoop is one of the main entry points to the program. Call this to build
// in a perpetual loop that rebuilds whenever a watched file changes.
//
// Sending the process SIGUSR1 triggers a forced rebuild.
func BuildLoop(config *Config, f BuildFunc) {
	config = fillDefaults(config)
	c := newBuildContext(config)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitWithError(c, xerrors.Errorf("error starting watcher: %w", err))
	}
	defer watcher.Close()

	for _, dir := range append([]string{config.SourceDir}, config.WatchDirs...) {
		if err := watcher.Add(dir); err != nil {
			exitWithError(c, xerrors.Errorf("error watching directory '%s': %w", dir, err))
		}
		c.Log.Debugf("Watching directory: %s", dir)
	}

	rebuild := make(chan map[string]struct{})
	rebuildDone := make(chan struct{})
	go watchChanges(c, watcher.Events, watcher.Errors, rebuild, rebuildDone)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGUSR1)

	buildNum := 0
	_ = runBuild(c, f, buildNum)

	for {
		select {
		case changed := <-rebuild:
			buildNum++

			buildC := c
			if changedOutside(changed, config.SourceDir) {
				c.Log.Infof("Change outside of source directory; forcing rebuild")
				buildC = c.ForcedContext()
			}

			_ = runBuild(buildC, f, buildNum)
			rebuildDone <- struct{}{}

		case sig := <-signals:
			buildNum++
			c.Log.Infof("Received signal %v; forcing rebuild", sig)
			_ = runBuild(c.ForcedContext(), f, buildNum)
		}
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

// The maximum number of errors printed at the end of a build.
const maxErrorsPrinted = 10

func changedOutside(changed map[string]struct{}, sourceDir string) bool {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return true
	}

	for path := range changed {
		absPath, err := filepath.Abs(path)
		if err != nil || !strings.HasPrefix(absPath, absSource+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// Exits with status code 1, printing the given error to the logger first.
func exitWithError(c *Context, err error) {
	c.Log.Errorf("nemulo: %v", err)
	os.Exit(1)
}

func fillDefaults(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}

	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}

	if config.Log == nil {
		config.Log = &Logger{Level: LevelInfo}
	}

	if config.SourceDir == "" {
		config.SourceDir = "."
	}

	if config.TargetDir == "" {
		config.TargetDir = "."
	}

	return config
}

func newBuildContext(config *Config) *Context {
	pool := NewPool(config.Log, config.Concurrency)

	return NewContext(&Args{
		Concurrency: config.Concurrency,
		Forced:      config.Forced,
		Log:         config.Log,
		Pool:        pool,
		SourceDir:   config.SourceDir,
		TargetDir:   config.TargetDir,
	})
}

// Runs a single pass of the build function and waits for all of its jobs.
// Returns every error that occurred, whether from the build function itself
// or from one of its jobs.
func runBuild(c *Context, f BuildFunc, buildNum int) []error {
	c.Log.Debugf("Start build %v", buildNum)
	c.Stats.Reset()

	c.pool.StartRound(buildNum)
	c.Jobs = c.pool.Jobs

	errs := f(c)

	c.pool.Wait()
	c.Stats.JobsErrored = append(c.Stats.JobsErrored, c.pool.JobsErrored...)
	c.Stats.JobsExecuted = append(c.Stats.JobsExecuted, c.pool.JobsExecuted...)
	c.Stats.NumJobs += len(c.pool.JobsAll)

	for _, job := range c.Stats.JobsErrored {
		errs = append(errs, xerrors.Errorf("job '%s': %w", job.Name, job.Err))
	}

	for i, err := range errs {
		c.Log.Errorf("Build error: %v", err)

		if i >= maxErrorsPrinted-1 {
			c.Log.Errorf("Too many errors.")
			break
		}
	}

	c.Log.Infof("Built site in %s (%v / %v job(s) did work)",
		time.Since(c.Stats.Start), len(c.Stats.JobsExecuted), c.Stats.NumJobs)

	return errs
}

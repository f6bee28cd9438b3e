package mfile

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
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

// CopyFile is a shortcut for copy a file from a source path to a target path.
func CopyFile(c *nemulo.Context, source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return xerrors.Errorf("error opening copy source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return xerrors.Errorf("error creating copy target: %w", err)
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	if err != nil {
		return xerrors.Errorf("error copying data: %w", err)
	}

	c.Log.Debugf("mfile: Copied '%s' to '%s'", source, target)
	return nil
}

// CopyFileToDir is a shortcut for copy a file from a source path to a target
// directory.
func CopyFileToDir(c *nemulo.Context, source, targetDir string) error {
	return CopyFile(c, source, filepath.Join(targetDir, filepath.Base(source)))
}

// EnsureDir ensures the existence of a target directory.
func EnsureDir(c *nemulo.Context, target string) error {
	err := os.MkdirAll(target, 0o755)
	if err != nil {
		return xerrors.Errorf("error creating directory: %w", err)
	}

	c.Log.Debugf("mfile: Ensured dir existence: %s", target)
	return nil
}

// Exists is a shortcut to check if a file exists. It panics if encountering an
// unexpected error.
func Exists(file string) bool {
	_, err := os.Stat(file)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	panic(err)
}

// IsBackup indicates whether a given filename is a backup file (i.e. suffixed
// by `~`).
func IsBackup(base string) bool {
	return strings.HasSuffix(base, "~")
}

// IsHidden indicates whether a given filename is a hidden file (i.e. prefixed
// by `.`).
func IsHidden(base string) bool {
	return strings.HasPrefix(base, ".")
}

// IsMeta indicates whether a given filename is a "meta" file (i.e. prefixed by
// `_`).
func IsMeta(base string) bool {
	return strings.HasPrefix(base, "_")
}

// NeedsRebuild reports whether a target built from source is missing or
// strictly older than the source. A target modified at the same time as its
// source or later is current.
func NeedsRebuild(source, target string) (bool, error) {
	sourceInfo, err := os.Stat(source)
	if err != nil {
		return false, xerrors.Errorf("error stat'ing source: %w", err)
	}

	targetInfo, err := os.Stat(target)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, xerrors.Errorf("error stat'ing target: %w", err)
	}

	return targetInfo.ModTime().Before(sourceInfo.ModTime()), nil
}

// SanitizeFilename replaces characters that are unsafe in filenames and URLs
// (path separators, shell and Windows specials, and spaces) with underscores.
func SanitizeFilename(name string) string {
	return unsafeFilenameCharsRE.ReplaceAllString(name, "_")
}

// WriteFile writes data to a target path, creating its parent directories as
// necessary.
func WriteFile(c *nemulo.Context, target string, data []byte) error {
	if err := EnsureDir(c, filepath.Dir(target)); err != nil {
		return err
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return xerrors.Errorf("error writing file: %w", err)
	}

	c.Log.Debugf("mfile: Wrote file: %s", target)
	return nil
}

//
// ReadDir
//

// ReadDir reads files in a directory and returns a list of file paths.
//
// Unlike os.ReadDir, this function skips hidden, "meta" (i.e. prefixed by an
// underscore), and Vim backup (i.e. suffixed with a tilde) files, and returns
// a list of full paths (easier to plumb into other functions).
func ReadDir(c *nemulo.Context, source string) ([]string, error) {
	return ReadDirWithOptions(c, source, nil)
}

// ReadDirOptions are options for ReadDirWithOptions.
type ReadDirOptions struct {
	// Ext only lists files with this extension (e.g. ".md") when set.
	Ext string

	// ShowBackup tells the function to not skip backup files like those
	// produced by Vim. These are suffixed with a tilde '~'.
	ShowBackup bool

	// ShowDirs tell the function not to skip directories.
	ShowDirs bool

	// ShowHidden tells the function to not skip hidden files (prefixed with a
	// dot '.').
	ShowHidden bool

	// ShowMeta tells the function to not skip so-called "meta" files
	// (prefixed with an underscore '_').
	ShowMeta bool
}

// ReadDirCached is the same as ReadDirWithOptions, but it caches results for
// some amount of time to make it faster. The downside of this of course is
// that we occasionally get a stale cache when a new file is added and don't
// see it. Forced contexts always bypass the cache.
func ReadDirCached(c *nemulo.Context, source string,
	opts *ReadDirOptions,
) ([]string, error) {
	// Only the source is used as cache key even though options could vary.
	// Callers always list a particular directory with the same options.
	if paths, ok := readDirCache.Get(source); ok && !c.Forced() {
		c.Log.Debugf("mfile: Using cached results of ReadDir: %s", source)
		return paths.([]string), nil
	}

	files, err := ReadDirWithOptions(c, source, opts)
	if err != nil {
		return nil, err
	}

	readDirCache.Set(source, files, gocache.DefaultExpiration)
	return files, nil
}

// ReadDirWithOptions reads files in a directory and returns a list of file
// paths.
//
// Unlike ReadDir, its behavior can be tweaked.
func ReadDirWithOptions(c *nemulo.Context, source string,
	opts *ReadDirOptions,
) ([]string, error) {
	if opts == nil {
		opts = &ReadDirOptions{}
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, xerrors.Errorf("error reading directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		base := entry.Name()

		if !opts.ShowBackup && IsBackup(base) {
			continue
		}

		if !opts.ShowDirs && entry.IsDir() {
			continue
		}

		if !opts.ShowHidden && IsHidden(base) {
			continue
		}

		if !opts.ShowMeta && IsMeta(base) {
			continue
		}

		if opts.Ext != "" && !entry.IsDir() && filepath.Ext(base) != opts.Ext {
			continue
		}

		files = append(files, filepath.Join(source, base))
	}

	c.Log.Debugf("mfile: Read dir: %s", source)
	return files, nil
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

// An expiring cache that stores the results of a `mfile.ReadDir` (i.e. list
// directory) for some period of time. In a build loop the source directory is
// listed on every pass, and new files are picked up when the entry expires or
// when a forced rebuild is requested.
//
// Arguments are (defaultExpiration, cleanupInterval).
var readDirCache = gocache.New(30*time.Second, 10*time.Minute)

var unsafeFilenameCharsRE = regexp.MustCompile(`[\\/*?:"<>| ]`)

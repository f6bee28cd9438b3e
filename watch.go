package nemulo

import (
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

// The time window in which *not* to trigger a rebuild if the next set of
// detected changes are on exactly the same files as the last.
const sameFileQuiesceTime = 100 * time.Millisecond

// Listens for file system changes from fsnotify and pushes relevant ones back
// out over the rebuild channel.
//
// It doesn't start listening to fsnotify again until the main loop has
// signaled rebuildDone, so there is a possibility that in the case of very
// fast consecutive changes the build might not be perfectly up to date.
func watchChanges(c *Context, watchEvents chan fsnotify.Event, watchErrors chan error,
	rebuild chan map[string]struct{}, rebuildDone chan struct{},
) {
	var changedSources, lastChangedSources map[string]struct{}
	var lastRebuild time.Time

	for {
		select {
		case event, ok := <-watchEvents:
			if !ok {
				c.Log.Infof("Watcher detected closed channel; stopping")
				return
			}

			c.Log.Debugf("Received event from watcher: %+v", event)

			if !shouldRebuild(event.Name, event.Op) {
				continue
			}

			lastChangedSources = changedSources
			changedSources = map[string]struct{}{event.Name: {}}

			// On the first rebuild-eligible event a build starts right away.
			// Changes that stream in while it runs are accumulated, and once
			// it finishes another build starts if there were any. This
			// repeats until a build completes without new changes.
			for len(changedSources) > 0 {
				// A single save sometimes produces several events on the same
				// file in quick succession. Don't rebuild for an identical
				// set of changes inside the quiesce window.
				if buildWithinSameFileQuiesce(lastRebuild, time.Now(), changedSources, lastChangedSources) {
					c.Log.Infof("Identical file(s) %v changed within quiesce time; not rebuilding",
						mapKeys(changedSources))
					break
				}

				lastRebuild = time.Now()

				rebuild <- changedSources

				lastChangedSources = changedSources
				changedSources = nil

			INNER_LOOP:
				for {
					select {
					case <-rebuildDone:
						break INNER_LOOP

					case event, ok := <-watchEvents:
						if !ok {
							c.Log.Infof("Watcher detected closed channel; stopping")
							return
						}

						if !shouldRebuild(event.Name, event.Op) {
							continue
						}

						if changedSources == nil {
							changedSources = make(map[string]struct{})
						}

						changedSources[event.Name] = struct{}{}

					case err, ok := <-watchErrors:
						if !ok {
							c.Log.Infof("Watcher detected closed channel; stopping")
							return
						}
						c.Log.Errorf("Error from watcher: %v", err)
					}
				}
			}

		case err, ok := <-watchErrors:
			if !ok {
				c.Log.Infof("Watcher detected closed channel; stopping")
				return
			}
			c.Log.Errorf("Error from watcher: %v", err)
		}
	}
}

func buildWithinSameFileQuiesce(lastRebuild, now time.Time,
	changedSources, lastChangedSources map[string]struct{},
) bool {
	if lastChangedSources == nil {
		return false
	}

	if now.Add(-sameFileQuiesceTime).After(lastRebuild) {
		return false
	}

	if len(lastChangedSources) != len(changedSources) {
		return false
	}

	return reflect.DeepEqual(lastChangedSources, changedSources)
}

func mapKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decides whether a rebuild should be triggered given some input event
// properties from fsnotify.
func shouldRebuild(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a
	// target directory.
	if base == "4913" {
		return false
	}

	// Editor swap and backup files.
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}

	// Chmods don't affect output and renames are followed by a create.
	return op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write) != 0
}

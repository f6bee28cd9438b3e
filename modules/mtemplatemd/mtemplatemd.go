// Package mtemplatemd provides a template helper function which allows an
// external Markdown file to be included and rendered, like a blurb about the
// site on its index page.
//
// Exists in its own package separate from mtemplate so that mtemplate doesn't
// have to depend on mmarkdown.
package mtemplatemd

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"github.com/nemulo/nemulo/modules/mmarkdown"
)

// FuncMap is a set of helper functions to make available in templates for the
// project.
var FuncMap = template.FuncMap{
	"IncludeMarkdown": IncludeMarkdown,
}

// ContextKey is the name of the context key to which IncludeMarkdown will add
// filenames for included dependencies. This is important so that the caller can
// add them as dependencies to watch for rebuilds.
type ContextKey struct{}

// ContextContainer collects the files included while rendering a template.
type ContextContainer struct {
	// BaseDir is the directory that relative filenames are resolved against.
	BaseDir string

	Dependencies    []string
	dependenciesMap map[string]struct{}
	mu              sync.Mutex
}

// Context returns a context that IncludeMarkdown resolves filenames with and
// records dependencies into. Pass it to templates as `.Ctx`.
func Context(ctx context.Context, baseDir string) (context.Context, *ContextContainer) {
	container := &ContextContainer{BaseDir: baseDir, dependenciesMap: make(map[string]struct{})}
	return context.WithValue(ctx, ContextKey{}, container), container
}

// IncludeMarkdown renders a Markdown file for inclusion in a template. It
// panics on error, which html/template reports as an execution error.
func IncludeMarkdown(ctx context.Context, filename string) template.HTML {
	container, _ := ctx.Value(ContextKey{}).(*ContextContainer)

	if container != nil && !filepath.IsAbs(filename) {
		filename = filepath.Join(container.BaseDir, filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		panic(fmt.Sprintf("error rendering Markdown: %s", err))
	}

	if container != nil {
		container.mu.Lock()
		if _, ok := container.dependenciesMap[filename]; !ok {
			container.Dependencies = append(container.Dependencies, filename)
			container.dependenciesMap[filename] = struct{}{}
		}
		container.mu.Unlock()
	}

	return template.HTML(mmarkdown.Render(data))
}

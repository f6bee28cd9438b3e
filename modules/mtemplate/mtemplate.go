package mtemplate

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/mfile"
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

// Ext is the extension of page templates and partials in a template
// directory.
const Ext = ".tmpl.html"

// FuncMap is a set of helper functions to make available in templates for the
// project.
var FuncMap = template.FuncMap{
	"CollapseParagraphs":           CollapseParagraphs,
	"DistanceOfTimeInWords":        DistanceOfTimeInWords,
	"DistanceOfTimeInWordsFromNow": DistanceOfTimeInWordsFromNow,
	"FormatDate":                   FormatDate,
	"FormatTime":                   FormatTime,
	"HTMLSafePassThrough":          HTMLSafePassThrough,
	"JoinLabels":                   JoinLabels,
	"QueryEscape":                  QueryEscape,
	"Truncate":                     Truncate,
}

// CollapseParagraphs strips paragraph tags out of rendered HTML. Note that it
// does not handle HTML with any attributes, so is targeted mainly for use with
// HTML generated from Markdown.
func CollapseParagraphs(s string) string {
	sCollapsed := s
	sCollapsed = strings.ReplaceAll(sCollapsed, "<p>", "")
	sCollapsed = strings.ReplaceAll(sCollapsed, "</p>", "")
	return collapseHTML(sCollapsed)
}

// CombineFuncMaps combines a number of function maps into one. The combined
// version is a new function map so that none of the originals are tainted.
func CombineFuncMaps(funcMaps ...template.FuncMap) template.FuncMap {
	combined := make(template.FuncMap)

	for _, fm := range funcMaps {
		for k, v := range fm {
			if _, ok := combined[k]; ok {
				panic(fmt.Errorf("duplicate function map key on combine: %s", k))
			}

			combined[k] = v
		}
	}

	return combined
}

const (
	minutesInDay   = 24 * 60
	minutesInMonth = 30 * 24 * 60
	minutesInYear  = 365 * 24 * 60
)

// DistanceOfTimeInWords returns a string describing the relative time passed
// between two times.
func DistanceOfTimeInWords(to, from time.Time) string {
	d := from.Sub(to)
	min := int(round(d.Minutes()))

	switch {
	case min == 0:
		return "less than 1 minute"
	case min == 1:
		return fmt.Sprintf("%d minute", min)
	case min >= 1 && min <= 44:
		return fmt.Sprintf("%d minutes", min)
	case min >= 45 && min <= 89:
		return "about 1 hour"
	case min >= 90 && min <= minutesInDay-1:
		return fmt.Sprintf("about %d hours", int(round(d.Hours())))
	case min >= minutesInDay && min <= minutesInDay*2-1:
		return "about 1 day"
	case min >= 2520 && min <= minutesInMonth-1:
		return fmt.Sprintf("%d days", int(round(d.Hours()/24.0)))
	case min >= minutesInMonth && min <= minutesInMonth*2-1:
		return "about 1 month"
	case min >= minutesInMonth*2 && min <= minutesInYear-1:
		return fmt.Sprintf("%d months", int(round(d.Hours()/24.0/30.0)))
	case min >= minutesInYear && min <= minutesInYear+3*minutesInMonth-1:
		return "about 1 year"
	case min >= minutesInYear+3*minutesInMonth-1 && min <= minutesInYear+9*minutesInMonth-1:
		return "over 1 year"
	case min >= minutesInYear+9*minutesInMonth && min <= minutesInYear*2-1:
		return "almost 2 years"
	}

	return fmt.Sprintf("%d years", int(round(d.Hours()/24.0/365.0)))
}

// DistanceOfTimeInWordsFromNow returns a string describing the relative time
// passed between a time and the current moment.
func DistanceOfTimeInWordsFromNow(to time.Time) string {
	return DistanceOfTimeInWords(to, time.Now())
}

// FormatDate formats an article date like `2006/01/02`.
func FormatDate(t time.Time) string {
	return t.Format("2006/01/02")
}

// FormatTime formats time according to a relatively straightforward time
// format.
func FormatTime(t time.Time) string {
	return toNonBreakingWhitespace(t.Format("January 2, 2006"))
}

// HTMLSafePassThrough passes a string through to the final render. This is
// especially useful for code samples that contain Go template syntax which
// shouldn't be rendered.
func HTMLSafePassThrough(s string) template.HTML {
	return template.HTML(strings.TrimSpace(s))
}

// JoinLabels joins labels for display.
func JoinLabels(labels []string) string {
	return strings.Join(labels, ", ")
}

// QueryEscape escapes a URL.
func QueryEscape(s string) string {
	return url.QueryEscape(s)
}

// Truncate shortens s to at most n characters, ending it with an ellipsis if
// anything was cut.
func Truncate(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// Renderer renders page templates from a directory with html/template.
//
// Every page template is parsed together with the directory's partials,
// which are "meta" files (prefixed with `_`). Parsed templates are cached
// until one of their files changes or a forced context is used.
type Renderer struct {
	// Dir is the directory containing templates.
	Dir string

	// FuncMap is made available to every template.
	FuncMap template.FuncMap

	cache *gocache.Cache
	mu    sync.Mutex
}

// NewRenderer returns a renderer for templates in dir with the project's
// standard helpers plus any extra function maps.
func NewRenderer(dir string, funcMaps ...template.FuncMap) *Renderer {
	return &Renderer{
		Dir:     dir,
		FuncMap: CombineFuncMaps(append([]template.FuncMap{FuncMap}, funcMaps...)...),
		cache:   gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Load parses the page template called name (without extension), reusing a
// cached parse when none of its files have changed. It also returns whether
// the template was unchanged.
func (r *Renderer) Load(c *nemulo.Context, name string) (*template.Template, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.Dir, name+Ext)
	if !mfile.Exists(path) {
		return nil, false, xerrors.Errorf("template not found: %s", path)
	}

	partials, err := r.partials(c)
	if err != nil {
		return nil, false, err
	}

	// Every file is checked so that all of their modification times are
	// recorded.
	unchanged := true
	for _, file := range append([]string{path}, partials...) {
		if !c.IsUnchanged(file) {
			unchanged = false
		}
	}

	if cached, ok := r.cache.Get(path); ok && unchanged && !c.Forced() {
		return cached.(*template.Template), true, nil
	}

	tmpl, err := template.New(filepath.Base(path)).
		Funcs(r.FuncMap).
		ParseFiles(append([]string{path}, partials...)...)
	if err != nil {
		return nil, false, xerrors.Errorf("error parsing template '%s': %w", path, err)
	}

	r.cache.Set(path, tmpl, gocache.DefaultExpiration)

	c.Log.Debugf("mtemplate: Loaded template: %s", path)
	return tmpl, unchanged, nil
}

// Render renders the page template called name with data and writes the
// result to target.
func (r *Renderer) Render(c *nemulo.Context, name, target string, data map[string]interface{}) error {
	tmpl, _, err := r.Load(c, name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return xerrors.Errorf("error rendering template '%s': %w", name, err)
	}

	if err := mfile.WriteFile(c, target, buf.Bytes()); err != nil {
		return err
	}

	c.Log.Debugf("mtemplate: Rendered '%s' to '%s'", name, target)
	return nil
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

// Look for any whitespace between HTML tags.
var whitespaceRE = regexp.MustCompile(`>\s+<`)

// Simply collapses certain HTML snippets by removing newlines and whitespace
// between tags.
func collapseHTML(html string) string {
	html = strings.ReplaceAll(html, "\n", "")
	html = whitespaceRE.ReplaceAllString(html, "><")
	html = strings.TrimSpace(html)
	return html
}

func (r *Renderer) partials(c *nemulo.Context) ([]string, error) {
	files, err := mfile.ReadDirWithOptions(c, r.Dir, &mfile.ReadDirOptions{ShowMeta: true})
	if err != nil {
		return nil, err
	}

	var partials []string
	for _, file := range files {
		base := filepath.Base(file)
		if mfile.IsMeta(base) && strings.HasSuffix(base, Ext) {
			partials = append(partials, file)
		}
	}

	return partials, nil
}

// There is no "round" function built into Go :/
func round(f float64) float64 {
	return math.Floor(f + .5)
}

func toNonBreakingWhitespace(str string) string {
	return strings.ReplaceAll(str, " ", "\u00a0")
}

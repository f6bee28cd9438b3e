package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/mace"
	"github.com/nemulo/nemulo/modules/marticle"
	"github.com/nemulo/nemulo/modules/mtemplate"
	"github.com/nemulo/nemulo/modules/mtesting"
)

const firstSource = `# First
* labels: go
* summary: The first.
## article
Hello **world**.
`

const secondSource = `# Second
* date: 2023-10-01
* mood: sunny
## summary
From the section.
## article
Teaser.

:break

After the break.
`

func TestSiteBuild(t *testing.T) {
	s, c := newTestSite(t)

	mtesting.WriteFile(t, c.SourceDir, "20230915-first.md", firstSource)
	mtesting.WriteFile(t, c.SourceDir, "20230101-second.md", secondSource)
	mtesting.WriteFile(t, c.SourceDir, "not-an-article.md", "# Nope\n")
	mtesting.WriteFile(t, c.SourceDir, "notes.txt", "ignored")

	assert.Empty(t, s.Build(c))
	assert.True(t, c.Wait())

	first := readTarget(t, c, "2023", "0915-first.html")
	assert.Equal(t, "<h1>First</h1><p>Hello <strong>world</strong>.</p>"+
		"<p>The first.</p><ul><li>Second</li><li>First</li></ul>", first)

	second := readTarget(t, c, "2023", "1001-second.html")
	assert.Contains(t, second, "<h1>Second</h1>")
	assert.Contains(t, second, "<p>From the section.</p>")

	index := readTarget(t, c, "index.html")
	assert.Contains(t, index, `<a href="/2023/1001-second.html">Second</a><p>Teaser.</p>`)
	assert.Contains(t, index, `<a href="/2023/0915-first.html">First</a>`)
	assert.Less(t, strings.Index(index, "Second"), strings.Index(index, "First"))
	assert.Contains(t, index, "<em>here</em>")

	sidebar := readTarget(t, c, "articles.js")
	assert.True(t, strings.HasPrefix(sidebar, "const articles = ["))
	assert.True(t, strings.HasSuffix(sidebar, "];\n"))
	assert.Contains(t, sidebar, `"path": "/2023/1001-second.html"`)
	assert.Contains(t, sidebar, `"summary": "From the section."`)
	assert.Contains(t, sidebar, `"labels": [
      "Uncategorized"
    ]`)

	assert.Equal(t, "body {}", readTarget(t, c, "style.css"))
}

func TestSiteBuild_Unchanged(t *testing.T) {
	s, c := newTestSite(t)

	mtesting.WriteFile(t, c.SourceDir, "20230915-first.md", firstSource)

	assert.Empty(t, s.Build(c))
	assert.True(t, c.Wait())
	assert.Contains(t, executedJobs(c), "article: 20230915-first.md")

	// Nothing changed so the article isn't rendered again, but the index and
	// sidebar always are.
	c.Stats.Reset()
	assert.Empty(t, s.Build(c))
	assert.True(t, c.Wait())
	assert.NotContains(t, executedJobs(c), "article: 20230915-first.md")
	assert.NotContains(t, executedJobs(c), "static: style.css")
	assert.Contains(t, executedJobs(c), "index")
	assert.Contains(t, executedJobs(c), "sidebar")

	// Forcing renders everything.
	forcedC := c.ForcedContext()
	forcedC.Stats.Reset()
	assert.Empty(t, s.Build(forcedC))
	assert.True(t, forcedC.Wait())
	assert.Contains(t, executedJobs(forcedC), "article: 20230915-first.md")
	assert.Contains(t, executedJobs(forcedC), "static: style.css")
}

func TestSiteBuild_DuplicateDestination(t *testing.T) {
	s, c := newTestSite(t)

	mtesting.WriteFile(t, c.SourceDir, "20230915-first.md", firstSource)
	mtesting.WriteFile(t, c.SourceDir, "20230915-other.md", "# Other\n* filename: first\n")

	articles, skipped := s.parseArticles(c, []string{
		filepath.Join(c.SourceDir, "20230915-first.md"),
		filepath.Join(c.SourceDir, "20230915-other.md"),
	})
	assert.Len(t, articles, 1)
	assert.Equal(t, []string{filepath.Join(c.SourceDir, "20230915-other.md")}, skipped)
}

func TestSiteBuild_MissingSourceDir(t *testing.T) {
	s, c := newTestSite(t)
	c.SourceDir = filepath.Join(c.SourceDir, "missing")

	errs := s.Build(c)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "source directory doesn't exist")
}

func TestSiteBuild_MissingTemplate(t *testing.T) {
	s, c := newTestSite(t)
	assert.NoError(t, os.Remove(filepath.Join(s.conf.TemplatePath, "article"+mtemplate.Ext)))

	mtesting.WriteFile(t, c.SourceDir, "20230915-first.md", firstSource)

	assert.Empty(t, s.Build(c))
	assert.False(t, c.Wait())
	assert.Len(t, c.Stats.JobsErrored, 1)
	assert.Equal(t, "article: 20230915-first.md", c.Stats.JobsErrored[0].Name)
}

func TestNewSite_TemplateEngine(t *testing.T) {
	conf := newTestConf(t)

	_, ok := NewSite(conf).renderer.(*mtemplate.Renderer)
	assert.True(t, ok)

	conf.TemplateEngine = templateEngineACE
	_, ok = NewSite(conf).renderer.(*mace.Renderer)
	assert.True(t, ok)
}

func TestSidebarEntries(t *testing.T) {
	var articles []*marticle.Article
	for _, base := range []string{"20230101-a.md", "20230301-c.md", "20230301-b.md"} {
		a := marticle.NewArticle(base, nil)
		assert.NoError(t, a.Parse([]string{"# " + base}))
		articles = append(articles, a)
	}

	sortArticles(articles)
	assert.Equal(t, "b", articles[0].Slug)
	assert.Equal(t, "c", articles[1].Slug)
	assert.Equal(t, "a", articles[2].Slug)

	entries := sidebarEntries(articles, 2)
	assert.Len(t, entries, 2)
	assert.Equal(t, "/2023/0301-b.html", entries[0].Path)
	assert.Equal(t, "2023/03/01", entries[0].Date)
	assert.Equal(t, "20230301-b.md", entries[0].Title)

	assert.Len(t, sidebarEntries(articles, 10), 3)
	assert.Empty(t, sidebarEntries(nil, 10))
}

func TestWriteSidebar_Empty(t *testing.T) {
	c := mtesting.NewContext()
	c.TargetDir = t.TempDir()

	assert.NoError(t, writeSidebar(c, sidebarEntries(nil, 20)))

	data, err := os.ReadFile(filepath.Join(c.TargetDir, sidebarFile))
	assert.NoError(t, err)
	assert.Equal(t, "const articles = [];\n", string(data))
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

func executedJobs(c *nemulo.Context) []string {
	var names []string
	for _, job := range c.Stats.JobsExecuted {
		names = append(names, job.Name)
	}
	return names
}

func newTestConf(t *testing.T) *Conf {
	return &Conf{
		Alignment:      string(marticle.AlignmentMarkers),
		ArticleCount:   5,
		Blockquote:     string(marticle.BlockquoteLine),
		DestPath:       t.TempDir(),
		LogLevel:       "info",
		Markup:         string(marticle.MarkupNemulo),
		SidebarCount:   20,
		SrcPath:        t.TempDir(),
		TemplateEngine: templateEngineHTML,
		TemplatePath:   t.TempDir(),
	}
}

func newTestSite(t *testing.T) (*Site, *nemulo.Context) {
	conf := newTestConf(t)

	mtesting.WriteFile(t, conf.TemplatePath, "article"+mtemplate.Ext,
		`<h1>{{.title}}</h1>{{.article}}<p>{{.summary}}</p>`+
			`<ul>{{range .sidebar}}<li>{{.Title}}</li>{{end}}</ul>`)
	mtesting.WriteFile(t, conf.TemplatePath, "index"+mtemplate.Ext,
		`{{range .articles}}<a href="{{.path}}">{{.title}}</a>{{.teaser}}{{end}}`+
			`{{IncludeMarkdown .Ctx "_blurb.md"}}`)
	mtesting.WriteFile(t, conf.TemplatePath, "_blurb.md", "Welcome *here*.\n")
	mtesting.WriteFile(t, filepath.Join(conf.TemplatePath, staticDir), "style.css", "body {}")

	return NewSite(conf), mtesting.NewPooledContext(conf.SrcPath, conf.DestPath)
}

func readTarget(t *testing.T, c *nemulo.Context, elem ...string) string {
	data, err := os.ReadFile(filepath.Join(append([]string{c.TargetDir}, elem...)...))
	assert.NoError(t, err)
	return string(data)
}

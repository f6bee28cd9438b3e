package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/mace"
	"github.com/nemulo/nemulo/modules/marticle"
	"github.com/nemulo/nemulo/modules/mfile"
	"github.com/nemulo/nemulo/modules/mtemplate"
	"github.com/nemulo/nemulo/modules/mtemplatemd"
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

// Site builds a blog from a directory of articles.
type Site struct {
	conf     *Conf
	options  *marticle.Options
	renderer pageRenderer
}

// NewSite initializes a site for conf.
func NewSite(conf *Conf) *Site {
	var renderer pageRenderer
	switch conf.TemplateEngine {
	case templateEngineACE:
		renderer = mace.NewRenderer(conf.TemplatePath,
			mtemplate.CombineFuncMaps(mtemplate.FuncMap, mtemplatemd.FuncMap))
	default:
		renderer = mtemplate.NewRenderer(conf.TemplatePath, mtemplatemd.FuncMap)
	}

	return &Site{
		conf:     conf,
		options:  conf.Options(),
		renderer: renderer,
	}
}

// Build is a nemulo.BuildFunc. It renders every changed article, then the
// index page and the sidebar feed from all parseable articles.
func (s *Site) Build(c *nemulo.Context) []error {
	if !mfile.Exists(c.SourceDir) {
		return []error{xerrors.Errorf("source directory doesn't exist: %s", c.SourceDir)}
	}

	sources, err := mfile.ReadDirCached(c, c.SourceDir, &mfile.ReadDirOptions{Ext: ".md"})
	if err != nil {
		return []error{err}
	}

	articles, skipped := s.parseArticles(c, sources)
	if len(skipped) > 0 {
		c.Log.Warnf("Skipped %v article(s)", len(skipped))
	}

	sortArticles(articles)
	sidebar := sidebarEntries(articles, s.conf.SidebarCount)

	if err := s.addStaticJobs(c); err != nil {
		return []error{err}
	}

	for _, a := range articles {
		a := a
		c.AddJob("article: "+filepath.Base(a.SourcePath), func() (bool, error) {
			return s.renderArticle(c, a, sidebar)
		})
	}

	c.AddJob("index", func() (bool, error) {
		return true, s.renderIndex(c, articles, sidebar)
	})

	c.AddJob("sidebar", func() (bool, error) {
		return true, writeSidebar(c, sidebar)
	})

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

const (
	templateEngineACE  = "ace"
	templateEngineHTML = "html"
)

const (
	articleTemplate = "article"
	indexTemplate   = "index"
	sidebarFile     = "articles.js"
	staticDir       = "static"
)

// Satisfied by both mtemplate.Renderer and mace.Renderer.
type pageRenderer interface {
	Render(c *nemulo.Context, name, target string, data map[string]interface{}) error
}

// An article as it appears in the sidebar feed and in templates' `sidebar`.
type sidebarEntry struct {
	Date    string   `json:"date"`
	Labels  []string `json:"labels"`
	Path    string   `json:"path"`
	Summary string   `json:"summary"`
	Title   string   `json:"title"`
}

// Copies files in the template directory's `static` subdirectory to the
// target directory. Nothing happens if there isn't one.
func (s *Site) addStaticJobs(c *nemulo.Context) error {
	dir := filepath.Join(s.conf.TemplatePath, staticDir)
	if !mfile.Exists(dir) {
		return nil
	}

	files, err := mfile.ReadDir(c, dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		file := file
		c.AddJob("static: "+filepath.Base(file), func() (bool, error) {
			needsRebuild, err := mfile.NeedsRebuild(file,
				filepath.Join(c.TargetDir, filepath.Base(file)))
			if err != nil {
				return false, err
			}
			if !needsRebuild && !c.Forced() {
				return false, nil
			}

			if err := mfile.EnsureDir(c, c.TargetDir); err != nil {
				return true, err
			}

			return true, mfile.CopyFileToDir(c, file, c.TargetDir)
		})
	}

	return nil
}

// Data made available to an article's template. Metadata passes through
// under its own keys unless a computed value of the same name replaces it.
func articleData(a *marticle.Article) map[string]interface{} {
	data := make(map[string]interface{}, len(a.Metadata)+12)
	for key, value := range a.Metadata {
		data[key] = value
	}

	teaser, rest := a.MakeParts()

	data["article"] = template.HTML(a.MakeArticle())
	data["card_image"] = a.CardImage
	data["date"] = mtemplate.FormatDate(a.Time)
	data["heading"] = a.Heading
	data["labels"] = a.Labels
	data["path"] = "/" + a.URLPath()
	data["rest"] = template.HTML(rest)
	data["seeMore"] = template.HTML(a.MakeSeeMore())
	data["slug"] = a.Slug
	data["summary"] = a.MakeSummary()
	data["teaser"] = template.HTML(teaser)
	data["time"] = a.Time
	data["title"] = a.Title

	return data
}

// Parses every source. Articles that fail to parse are logged and returned as
// skipped rather than failing the build, as are articles whose destination
// was already claimed by another.
func (s *Site) parseArticles(c *nemulo.Context,
	sources []string,
) ([]*marticle.Article, []string) {
	var (
		articles     []*marticle.Article
		destinations = make(map[string]string)
		skipped      []string
	)

	for _, source := range sources {
		a := marticle.NewArticle(source, s.options)

		if err := a.Read(); err != nil {
			var parseErr *marticle.ParseError
			if !errors.As(err, &parseErr) {
				parseErr = &marticle.ParseError{Path: source, Err: err}
			}

			c.Log.Warnf("Skipping article: %v", parseErr)
			skipped = append(skipped, source)
			continue
		}

		for _, warning := range a.Warnings {
			c.Log.Warnf("marticle: %s: %s", source, warning)
		}

		dest := a.DestinationPath()
		if other, ok := destinations[dest]; ok {
			c.Log.Warnf("Skipping article: '%s' has the same destination as '%s': %s",
				source, other, dest)
			skipped = append(skipped, source)
			continue
		}
		destinations[dest] = source

		c.Log.Debugf("marticle: Parsed article: %s", source)
		articles = append(articles, a)
	}

	return articles, skipped
}

func (s *Site) renderArticle(c *nemulo.Context, a *marticle.Article,
	sidebar []*sidebarEntry,
) (bool, error) {
	needsRebuild, err := a.NeedsRebuild()
	if err != nil {
		return false, err
	}
	if !needsRebuild && !c.Forced() {
		return false, nil
	}

	data := articleData(a)
	data["sidebar"] = sidebar

	return true, s.render(c, articleTemplate, a.DestinationPath(), data)
}

func (s *Site) renderIndex(c *nemulo.Context, articles []*marticle.Article,
	sidebar []*sidebarEntry,
) error {
	recent := articles
	if len(recent) > s.conf.ArticleCount {
		recent = recent[:s.conf.ArticleCount]
	}

	entries := make([]map[string]interface{}, len(recent))
	for i, a := range recent {
		entries[i] = articleData(a)
	}

	return s.render(c, indexTemplate, filepath.Join(c.TargetDir, "index.html"),
		map[string]interface{}{
			"articles": entries,
			"sidebar":  sidebar,
		})
}

// Renders a page with a context for IncludeMarkdown, which resolves relative
// paths against the template directory.
func (s *Site) render(c *nemulo.Context, name, target string,
	data map[string]interface{},
) error {
	ctx, container := mtemplatemd.Context(context.Background(), s.conf.TemplatePath)
	data["Ctx"] = ctx

	if err := s.renderer.Render(c, name, target, data); err != nil {
		return err
	}

	for _, dependency := range container.Dependencies {
		c.Log.Debugf("Included '%s' in '%s'", dependency, target)
	}

	return nil
}

func sidebarEntries(articles []*marticle.Article, n int) []*sidebarEntry {
	if len(articles) > n {
		articles = articles[:n]
	}

	entries := make([]*sidebarEntry, len(articles))
	for i, a := range articles {
		entries[i] = &sidebarEntry{
			Date:    mtemplate.FormatDate(a.Time),
			Labels:  a.Labels,
			Path:    path.Join("/", a.URLPath()),
			Summary: a.MakeSummary(),
			Title:   a.Title,
		}
	}

	return entries
}

// Sorts articles from most to least recent. Articles on the same date sort by
// slug so that output is stable between builds.
func sortArticles(articles []*marticle.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].Time.Equal(articles[j].Time) {
			return articles[i].Time.After(articles[j].Time)
		}
		return articles[i].Slug < articles[j].Slug
	})
}

// Writes the sidebar feed as a script declaring an `articles` array.
func writeSidebar(c *nemulo.Context, entries []*sidebarEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return xerrors.Errorf("error marshaling sidebar: %w", err)
	}

	js := fmt.Sprintf("const articles = %s;\n", data)
	return mfile.WriteFile(c, filepath.Join(c.TargetDir, sidebarFile), []byte(js))
}

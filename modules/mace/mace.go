// Package mace renders pages with Ace templates as an alternative to
// mtemplate.
package mace

import (
	"bytes"
	"html/template"
	"path/filepath"

	"github.com/yosssi/ace"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/mfile"
)

// Ext is the extension of Ace templates.
const Ext = ".ace"

// Layout is the name of the base template that every view is rendered inside
// of.
const Layout = "_layout"

// Renderer renders Ace views from a directory inside of its layout.
type Renderer struct {
	// Dir is the directory containing templates.
	Dir string

	// FuncMap is made available to every template.
	FuncMap template.FuncMap
}

// NewRenderer returns a renderer for Ace templates in dir.
func NewRenderer(dir string, funcMap template.FuncMap) *Renderer {
	return &Renderer{Dir: dir, FuncMap: funcMap}
}

// Load loads the view called name (without extension) inside the layout. It
// also returns whether both files were unchanged.
func (r *Renderer) Load(c *nemulo.Context, name string) (*template.Template, bool, error) {
	basePath := filepath.Join(r.Dir, Layout)
	innerPath := filepath.Join(r.Dir, name)

	for _, path := range []string{basePath + Ext, innerPath + Ext} {
		if !mfile.Exists(path) {
			return nil, false, xerrors.Errorf("template not found: %s", path)
		}
	}

	unchangedBasePath := c.IsUnchanged(basePath + Ext)
	unchangedInnerPath := c.IsUnchanged(innerPath + Ext)

	opts := &ace.Options{FuncMap: r.FuncMap}

	// By default Ace will use a built-in caching mechanism and only load any
	// given template one time.
	//
	// If we detect that the source template or view files have changed then
	// set the special DynamicReload option to force the template to reload.
	if !unchangedBasePath || !unchangedInnerPath || c.Forced() {
		opts.DynamicReload = true
	}

	tmpl, err := ace.Load(basePath, innerPath, opts)
	if err != nil {
		return nil, false, xerrors.Errorf("error loading template: %w", err)
	}

	c.Log.Debugf("mace: Loaded template: layout '%s' view '%s'", basePath, innerPath)
	return tmpl, unchangedBasePath && unchangedInnerPath, nil
}

// Render renders the view called name with data and writes the result to
// target.
func (r *Renderer) Render(c *nemulo.Context, name, target string, data map[string]interface{}) error {
	tmpl, _, err := r.Load(c, name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return xerrors.Errorf("error rendering template: %w", err)
	}

	return mfile.WriteFile(c, target, buf.Bytes())
}

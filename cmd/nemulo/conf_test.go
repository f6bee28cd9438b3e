package main

import (
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/marticle"
	"github.com/nemulo/nemulo/modules/mtesting"
)

func TestLoadConf_Defaults(t *testing.T) {
	conf, err := loadConf(newViper(), "", "")
	assert.NoError(t, err)

	assert.Equal(t, ".", conf.DestPath)
	assert.Equal(t, 5, conf.ArticleCount)
	assert.Equal(t, 20, conf.SidebarCount)
	assert.Equal(t, 5, conf.Concurrency)
	assert.Equal(t, templateEngineHTML, conf.TemplateEngine)
	assert.Equal(t, string(marticle.MarkupNemulo), conf.Markup)
}

func TestLoadConf_TOML(t *testing.T) {
	path := mtesting.WriteFile(t, t.TempDir(), "nemulo.toml", `
dest_path = "public"
article_count = 3
markup = "markdown"
extended = true
`)

	conf, err := loadConf(newViper(), path, "")
	assert.NoError(t, err)

	assert.Equal(t, "public", conf.DestPath)
	assert.Equal(t, 3, conf.ArticleCount)
	assert.Equal(t, 20, conf.SidebarCount)
	assert.True(t, conf.Extended)

	opts := conf.Options()
	assert.Equal(t, marticle.MarkupMarkdown, opts.Markup)
	assert.Equal(t, "public", opts.DestRoot)
	assert.True(t, opts.Extended)
}

func TestLoadConf_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := mtesting.WriteFile(t, dir, "nemulo.yaml", `
dest_path: from-yaml
src_path: from-yaml
sidebar_count: 1
`)
	envPath := mtesting.WriteFile(t, dir, ".env", "DEST_PATH=from-dotenv\nSIDEBAR_COUNT=2\n")
	t.Setenv("SIDEBAR_COUNT", "3")

	conf, err := loadConf(newViper(), path, envPath)
	assert.NoError(t, err)

	assert.Equal(t, "from-yaml", conf.SrcPath)
	assert.Equal(t, "from-dotenv", conf.DestPath)
	assert.Equal(t, 3, conf.SidebarCount)
}

func TestLoadConf_JSON(t *testing.T) {
	path := mtesting.WriteFile(t, t.TempDir(), "nemulo.json",
		`{"template_engine": "ace", "blockquote": "block"}`)

	conf, err := loadConf(newViper(), path, "")
	assert.NoError(t, err)

	assert.Equal(t, templateEngineACE, conf.TemplateEngine)
	assert.Equal(t, marticle.BlockquoteBlock, conf.Options().Blockquote)
}

func TestLoadConf_MissingEnvFile(t *testing.T) {
	_, err := loadConf(newViper(), "", "does-not-exist.env")
	assert.NoError(t, err)
}

func TestLoadConf_Invalid(t *testing.T) {
	dir := t.TempDir()

	{
		path := mtesting.WriteFile(t, dir, "markup.toml", `markup = "rst"`)
		_, err := loadConf(newViper(), path, "")
		assert.EqualError(t, err, `unknown markup: "rst"`)
	}

	{
		path := mtesting.WriteFile(t, dir, "engine.toml", `template_engine = "jinja"`)
		_, err := loadConf(newViper(), path, "")
		assert.EqualError(t, err, `unknown template engine: "jinja"`)
	}

	{
		path := mtesting.WriteFile(t, dir, "level.toml", `log_level = "loud"`)
		_, err := loadConf(newViper(), path, "")
		assert.EqualError(t, err, `unknown log level: "loud"`)
	}

	{
		path := mtesting.WriteFile(t, dir, "nemulo.ini", `dest_path=x`)
		_, err := loadConf(newViper(), path, "")
		assert.Error(t, err)
	}

	{
		path := mtesting.WriteFile(t, dir, "typo.toml", `dest_pth = "public"`)
		_, err := loadConf(newViper(), path, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config file")
	}

	{
		path := mtesting.WriteFile(t, dir, "typo.yaml", "dest_path: public\nsidebar_cnt: 3\n")
		_, err := loadConf(newViper(), path, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sidebar_cnt")
	}

	{
		path := mtesting.WriteFile(t, dir, "type.json", `{"article_count": "many"}`)
		_, err := loadConf(newViper(), path, "")
		assert.Error(t, err)
	}

	{
		path := mtesting.WriteFile(t, dir, "broken.toml", `dest_path = `)
		_, err := loadConf(newViper(), path, "")
		assert.Error(t, err)
	}
}

func TestConfLogger(t *testing.T) {
	conf := &Conf{Color: true, LogLevel: "debug"}

	log, err := conf.Logger()
	assert.NoError(t, err)
	assert.Equal(t, nemulo.LevelDebug, log.Level)
	assert.True(t, log.Color)
}

func TestFindConfFile(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", findConfFile(dir))

	mtesting.WriteFile(t, dir, "nemulo.json", `{}`)
	yamlPath := mtesting.WriteFile(t, dir, "nemulo.yaml", ``)

	// TOML is preferred, then YAML, then JSON.
	assert.Equal(t, yamlPath, findConfFile(dir))
}

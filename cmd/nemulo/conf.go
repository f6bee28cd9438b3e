package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
	"github.com/nemulo/nemulo/modules/marticle"
	"github.com/nemulo/nemulo/modules/mfile"
	"github.com/nemulo/nemulo/modules/mtoml"
	"github.com/nemulo/nemulo/modules/myaml"
)

// Conf contains configuration information for the command. It's loaded once
// at start from defaults, a config file, a `.env` file, the environment, and
// flags, in increasing order of precedence.
type Conf struct {
	// Alignment selects the paragraph alignment dialect of articles:
	// `markers` or `legacy`.
	Alignment string `mapstructure:"alignment" toml:"alignment" yaml:"alignment"`

	// ArticleCount is the number of recent articles rendered on the index
	// page.
	ArticleCount int `mapstructure:"article_count" toml:"article_count" yaml:"article_count"`

	// Blockquote selects the blockquote dialect of articles: `line` or
	// `block`.
	Blockquote string `mapstructure:"blockquote" toml:"blockquote" yaml:"blockquote"`

	// Color colorizes log output.
	Color bool `mapstructure:"color" toml:"color" yaml:"color"`

	// Concurrency is the number of build jobs that run at once.
	Concurrency int `mapstructure:"concurrency" toml:"concurrency" yaml:"concurrency"`

	// DestPath is the directory that the site is built into.
	DestPath string `mapstructure:"dest_path" toml:"dest_path" yaml:"dest_path"`

	// Extended enables the extended inline markup dialect.
	Extended bool `mapstructure:"extended" toml:"extended" yaml:"extended"`

	LogLevel string `mapstructure:"log_level" toml:"log_level" yaml:"log_level"`

	// Markup is the body markup of articles: `nemulo` or `markdown`.
	Markup string `mapstructure:"markup" toml:"markup" yaml:"markup"`

	// SidebarCount is the number of recent articles written to the sidebar
	// feed.
	SidebarCount int `mapstructure:"sidebar_count" toml:"sidebar_count" yaml:"sidebar_count"`

	// SrcPath is the directory containing article sources.
	SrcPath string `mapstructure:"src_path" toml:"src_path" yaml:"src_path"`

	// TemplateEngine is `html` for html/template or `ace` for Ace templates.
	TemplateEngine string `mapstructure:"template_engine" toml:"template_engine" yaml:"template_engine"`

	// TemplatePath is the directory containing page templates. A `static`
	// directory inside it is copied into DestPath.
	TemplatePath string `mapstructure:"template_path" toml:"template_path" yaml:"template_path"`
}

// Options returns article options for the configured dialects.
func (conf *Conf) Options() *marticle.Options {
	return &marticle.Options{
		Alignment:  marticle.Alignment(conf.Alignment),
		Blockquote: marticle.Blockquote(conf.Blockquote),
		DestRoot:   conf.DestPath,
		Extended:   conf.Extended,
		Markup:     marticle.Markup(conf.Markup),
	}
}

// Logger returns a logger for the configured level and color setting.
func (conf *Conf) Logger() (*nemulo.Logger, error) {
	level, err := nemulo.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}

	return &nemulo.Logger{Color: conf.Color, Level: level}, nil
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

var confDefaults = map[string]interface{}{
	"alignment":       string(marticle.AlignmentMarkers),
	"article_count":   5,
	"blockquote":      string(marticle.BlockquoteLine),
	"color":           false,
	"concurrency":     5,
	"dest_path":       ".",
	"extended":        false,
	"log_level":       "info",
	"markup":          string(marticle.MarkupNemulo),
	"sidebar_count":   20,
	"src_path":        "./content",
	"template_engine": "html",
	"template_path":   "./templates",
}

// Config files looked for in the working directory when none is given
// explicitly.
var confFileCandidates = []string{
	"nemulo.toml",
	"nemulo.yaml",
	"nemulo.yml",
	"nemulo.json",
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range confDefaults {
		v.SetDefault(key, value)
	}

	// Keys map to upper case variables like `DEST_PATH`.
	v.AutomaticEnv()
	return v
}

// Loads configuration into v's config layer and decodes it. configFile may be
// empty, in which case the first of confFileCandidates that exists is used.
// envFile is skipped when it doesn't exist.
func loadConf(v *viper.Viper, configFile, envFile string) (*Conf, error) {
	if configFile == "" {
		configFile = findConfFile(".")
	}

	if configFile != "" {
		settings, err := parseConfFile(configFile)
		if err != nil {
			return nil, err
		}

		if err := v.MergeConfigMap(settings); err != nil {
			return nil, xerrors.Errorf("error merging config file '%s': %w", configFile, err)
		}
	}

	if envFile != "" && mfile.Exists(envFile) {
		settings, err := parseEnvFile(envFile)
		if err != nil {
			return nil, err
		}

		if err := v.MergeConfigMap(settings); err != nil {
			return nil, xerrors.Errorf("error merging env file '%s': %w", envFile, err)
		}
	}

	var conf Conf
	if err := v.Unmarshal(&conf); err != nil {
		return nil, xerrors.Errorf("error decoding configuration: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

func findConfFile(dir string) string {
	for _, base := range confFileCandidates {
		path := filepath.Join(dir, base)
		if mfile.Exists(path) {
			return path
		}
	}

	return ""
}

// Parses a config file based on its extension. YAML is a superset of JSON so
// JSON files go through the YAML parser.
//
// The file is decoded strictly into Conf first so that unknown keys and
// values of the wrong type are reported, then into a map holding only the
// keys the file sets, which is what gets merged.
func parseConfFile(path string) (map[string]interface{}, error) {
	var (
		parse, parseStrict func(string, interface{}) error
		settings           = make(map[string]interface{})
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		parse, parseStrict = myaml.ParseFile, myaml.ParseFileStrict
	case ".toml":
		parse, parseStrict = mtoml.ParseFile, mtoml.ParseFileStrict
	default:
		return nil, xerrors.Errorf("unsupported config file type: %s", path)
	}

	var conf Conf
	if err := parseStrict(path, &conf); err != nil {
		return nil, xerrors.Errorf("invalid config file '%s': %w", path, err)
	}

	if err := parse(path, &settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Reads a dotenv style file. Keys like `DEST_PATH` come back as `dest_path`
// because viper lower cases keys.
func parseEnvFile(path string) (map[string]interface{}, error) {
	envViper := viper.New()
	envViper.SetConfigFile(path)
	envViper.SetConfigType("env")

	if err := envViper.ReadInConfig(); err != nil {
		return nil, xerrors.Errorf("error reading env file '%s': %w", path, err)
	}

	return envViper.AllSettings(), nil
}

func (conf *Conf) validate() error {
	switch marticle.Alignment(conf.Alignment) {
	case marticle.AlignmentMarkers, marticle.AlignmentLegacy:
	default:
		return xerrors.Errorf("unknown alignment: %q", conf.Alignment)
	}

	switch marticle.Blockquote(conf.Blockquote) {
	case marticle.BlockquoteLine, marticle.BlockquoteBlock:
	default:
		return xerrors.Errorf("unknown blockquote: %q", conf.Blockquote)
	}

	switch marticle.Markup(conf.Markup) {
	case marticle.MarkupNemulo, marticle.MarkupMarkdown:
	default:
		return xerrors.Errorf("unknown markup: %q", conf.Markup)
	}

	switch conf.TemplateEngine {
	case templateEngineACE, templateEngineHTML:
	default:
		return xerrors.Errorf("unknown template engine: %q", conf.TemplateEngine)
	}

	if conf.ArticleCount < 0 || conf.SidebarCount < 0 {
		return xerrors.Errorf("article_count and sidebar_count can't be negative")
	}

	if _, err := nemulo.ParseLevel(conf.LogLevel); err != nil {
		return err
	}

	return nil
}

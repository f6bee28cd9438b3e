package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/nemulo/nemulo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
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

// Flags that override a configuration key of the same meaning.
var confFlags = []struct {
	name, key, usage string
}{
	{"src", "src_path", "Directory containing articles"},
	{"dest", "dest_path", "Directory to build the site into"},
	{"templates", "template_path", "Directory containing page templates"},
	{"log-level", "log_level", "Log level: error, warn, info, or debug"},
	{"markup", "markup", "Article markup: nemulo or markdown"},
	{"template-engine", "template_engine", "Template engine: html or ace"},
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		envFile    string
		force      bool
	)

	v := newViper()

	rootCmd := &cobra.Command{
		Use:   "nemulo",
		Short: "Static blog generator",
		Long: `Builds a static blog from a directory of YYYYMMDD-slug.md articles.

Configuration is read from nemulo.toml, nemulo.yaml, or nemulo.json in the
working directory, then from a .env file and the environment (DEST_PATH,
SRC_PATH, TEMPLATE_PATH, ...), then from flags.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (.toml, .yaml, .yml, or .json)")
	flags.StringVar(&envFile, "env-file", ".env", "Dotenv file with configuration overrides")
	flags.Bool("color", false, "Colorize log output")
	flags.Int("concurrency", 0, "Number of build jobs to run at once")
	for _, f := range confFlags {
		flags.String(f.name, "", f.usage)
	}

	// A flag that can't be bound is a programming error.
	bind := func(key, name string) {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	bind("color", "color")
	bind("concurrency", "concurrency")
	for _, f := range confFlags {
		bind(f.key, f.name)
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, config, err := setup(v, configFile, envFile)
			if err != nil {
				return err
			}

			config.Forced = force
			nemulo.Build(config, site.Build)
			return nil
		},
	}
	buildCmd.Flags().BoolVarP(&force, "force", "f", false,
		"Rebuild every article regardless of modification times")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the site and rebuild it when articles or templates change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, config, err := setup(v, configFile, envFile)
			if err != nil {
				return err
			}

			nemulo.BuildLoop(config, site.Build)
			return nil
		},
	}

	rootCmd.AddCommand(buildCmd, watchCmd)
	return rootCmd
}

// Loads configuration and produces a site along with the build framework's
// configuration for it.
func setup(v *viper.Viper, configFile, envFile string) (*Site, *nemulo.Config, error) {
	conf, err := loadConf(v, configFile, envFile)
	if err != nil {
		return nil, nil, xerrors.Errorf("error loading configuration: %w", err)
	}

	log, err := conf.Logger()
	if err != nil {
		return nil, nil, err
	}

	config := &nemulo.Config{
		Concurrency: conf.Concurrency,
		Log:         log,
		SourceDir:   conf.SrcPath,
		TargetDir:   conf.DestPath,
		WatchDirs:   []string{conf.TemplatePath},
	}

	return NewSite(conf), config, nil
}

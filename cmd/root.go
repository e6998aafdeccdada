// Package cmd provides the command-line interface for assetpipe.
//
// Configuration is read from several sources with this precedence:
//  1. Command-line flags (--config, --port, --log-level, ...)
//  2. ASSETPIPE_CONFIG_FILE: path to a configuration file
//  3. Individual environment variables (ASSETPIPE_SERVER_PORT, ...)
//  4. The configuration file (.assetpipe.yml in the working directory)
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/config"
	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// configFileEnv names a configuration file when --config is not given.
const configFileEnv = "ASSETPIPE_CONFIG_FILE"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Build and serve static site assets",
	Long: `assetpipe compiles, minifies and optimizes the assets of a static site and
serves the result with live reload while you edit.

Pipelines:
  build     clean, copy, optimize images, then styles, html, script, svg,
            sprite and webp in parallel
  default   the same assets, then a development server and a watcher

Quick Start:
  assetpipe init        Write a default .assetpipe.yml
  assetpipe build       Produce build/ for deployment
  assetpipe             Build, serve and watch (same as "assetpipe dev")
  assetpipe run styles  Run individual tasks`,
	SilenceUsage: true,
	RunE:         runDev,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	err := rootCmd.Execute()
	if hint := apperrors.HintOf(err); hint != "" {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Hint:", hint)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetpipe.yml, can also use "+configFileEnv+")")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	addServerFlags(rootCmd.Flags())
}

// initConfig points viper at the configuration file and enables
// ASSETPIPE_* environment overrides. A missing file is not an error.
func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(configFileEnv) != "":
		viper.SetConfigFile(os.Getenv(configFileEnv))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}

// loadProject loads and validates the configuration and binds it to a
// project. When check is set the source tree invariants are verified too.
func loadProject(cmd *cobra.Command, check bool) (*assets.Project, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	p, err := assets.New(cfg, assets.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if check {
		if err := p.Check(); err != nil {
			return nil, nil, err
		}
	}
	return p, logger, nil
}

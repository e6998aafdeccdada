// Package config provides configuration management for assetpipe using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration declares every static input of the pipelines: the
// project root and output directory, the source globs and destination of
// each task, the development server parameters and the watch rules. Values
// are read once at process start and never change afterwards.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the default configuration file name, without extension.
const FileName = ".assetpipe"

type Config struct {
	Paths  PathsConfig  `mapstructure:"paths" yaml:"paths"`
	Styles StylesConfig `mapstructure:"styles" yaml:"styles"`
	HTML   HTMLConfig   `mapstructure:"html" yaml:"html"`
	Script ScriptConfig `mapstructure:"script" yaml:"script"`
	Images ImagesConfig `mapstructure:"images" yaml:"images"`
	SVG    StepConfig   `mapstructure:"svg" yaml:"svg"`
	Sprite SpriteConfig `mapstructure:"sprite" yaml:"sprite"`
	Copy   CopyConfig   `mapstructure:"copy" yaml:"copy"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type PathsConfig struct {
	Root   string `mapstructure:"root" yaml:"root"`
	Output string `mapstructure:"output" yaml:"output"`
}

// StepConfig is the part shared by every transform step: which files to
// read and where under the output directory to write them.
type StepConfig struct {
	Src  []string `mapstructure:"src" yaml:"src"`
	Dest string   `mapstructure:"dest" yaml:"dest"`
}

type StylesConfig struct {
	StepConfig  `mapstructure:",squash" yaml:",inline"`
	OutputName  string `mapstructure:"output_name" yaml:"output_name"`
	Compiler    string `mapstructure:"compiler" yaml:"compiler"`
	Postprocess string `mapstructure:"postprocess" yaml:"postprocess"`
	SourceMaps  bool   `mapstructure:"sourcemaps" yaml:"sourcemaps"`
}

type HTMLConfig struct {
	StepConfig         `mapstructure:",squash" yaml:",inline"`
	CollapseWhitespace bool `mapstructure:"collapse_whitespace" yaml:"collapse_whitespace"`
}

type ScriptConfig struct {
	StepConfig `mapstructure:",squash" yaml:",inline"`
}

type ImagesConfig struct {
	StepConfig  `mapstructure:",squash" yaml:",inline"`
	JPEGQuality int  `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	WebP        bool `mapstructure:"webp" yaml:"webp"`
}

type SpriteConfig struct {
	StepConfig `mapstructure:",squash" yaml:",inline"`
	OutputName string `mapstructure:"output_name" yaml:"output_name"`
}

type CopyConfig struct {
	Src  []string `mapstructure:"src" yaml:"src"`
	Base string   `mapstructure:"base" yaml:"base"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	CORS   bool   `mapstructure:"cors" yaml:"cors"`
	Notify bool   `mapstructure:"notify" yaml:"notify"`
	UI     bool   `mapstructure:"ui" yaml:"ui"`
	Open   bool   `mapstructure:"open" yaml:"open"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WatchConfig struct {
	Styles      []string      `mapstructure:"styles" yaml:"styles"`
	HTML        []string      `mapstructure:"html" yaml:"html"`
	Script      []string      `mapstructure:"script" yaml:"script"`
	RebuildHTML bool          `mapstructure:"rebuild_html" yaml:"rebuild_html"`
	Debounce    time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration matching the conventional project
// layout (source/ compiled into build/).
func Default() *Config {
	return &Config{
		Paths: PathsConfig{Root: ".", Output: "build"},
		Styles: StylesConfig{
			StepConfig: StepConfig{Src: []string{"source/less/style.less"}, Dest: "css"},
			OutputName: "style.min.css",
			Compiler:   "lessc",
			SourceMaps: true,
		},
		HTML: HTMLConfig{
			StepConfig:         StepConfig{Src: []string{"source/*.html"}, Dest: "."},
			CollapseWhitespace: true,
		},
		Script: ScriptConfig{
			StepConfig: StepConfig{Src: []string{"source/js/*.js"}, Dest: "js"},
		},
		Images: ImagesConfig{
			StepConfig:  StepConfig{Src: []string{"source/images/**/*.{jpg,png}"}, Dest: "images"},
			JPEGQuality: 75,
			WebP:        true,
		},
		SVG: StepConfig{
			Src:  []string{"source/images/*.svg", "!source/images/logos/*.svg"},
			Dest: "images",
		},
		Sprite: SpriteConfig{
			StepConfig: StepConfig{Src: []string{"source/images/logos/*.svg"}, Dest: "images"},
			OutputName: "sprite.svg",
		},
		Copy: CopyConfig{
			Src:  []string{"source/fonts/*.{woff2,woff}", "source/*.ico"},
			Base: "source",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
			CORS: true,
		},
		Watch: WatchConfig{
			Styles:      []string{"source/less/**/*.less"},
			HTML:        []string{"source/*.html"},
			Script:      []string{"source/js/script.js"},
			RebuildHTML: true,
			Debounce:    50 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers every default with viper so that environment
// variables and flags can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.root", d.Paths.Root)
	v.SetDefault("paths.output", d.Paths.Output)

	v.SetDefault("styles.src", d.Styles.Src)
	v.SetDefault("styles.dest", d.Styles.Dest)
	v.SetDefault("styles.output_name", d.Styles.OutputName)
	v.SetDefault("styles.compiler", d.Styles.Compiler)
	v.SetDefault("styles.postprocess", d.Styles.Postprocess)
	v.SetDefault("styles.sourcemaps", d.Styles.SourceMaps)

	v.SetDefault("html.src", d.HTML.Src)
	v.SetDefault("html.dest", d.HTML.Dest)
	v.SetDefault("html.collapse_whitespace", d.HTML.CollapseWhitespace)

	v.SetDefault("script.src", d.Script.Src)
	v.SetDefault("script.dest", d.Script.Dest)

	v.SetDefault("images.src", d.Images.Src)
	v.SetDefault("images.dest", d.Images.Dest)
	v.SetDefault("images.jpeg_quality", d.Images.JPEGQuality)
	v.SetDefault("images.webp", d.Images.WebP)

	v.SetDefault("svg.src", d.SVG.Src)
	v.SetDefault("svg.dest", d.SVG.Dest)

	v.SetDefault("sprite.src", d.Sprite.Src)
	v.SetDefault("sprite.dest", d.Sprite.Dest)
	v.SetDefault("sprite.output_name", d.Sprite.OutputName)

	v.SetDefault("copy.src", d.Copy.Src)
	v.SetDefault("copy.base", d.Copy.Base)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors", d.Server.CORS)
	v.SetDefault("server.notify", d.Server.Notify)
	v.SetDefault("server.ui", d.Server.UI)
	v.SetDefault("server.open", d.Server.Open)

	v.SetDefault("watch.styles", d.Watch.Styles)
	v.SetDefault("watch.html", d.Watch.HTML)
	v.SetDefault("watch.script", d.Watch.Script)
	v.SetDefault("watch.rebuild_html", d.Watch.RebuildHTML)
	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// EnvPrefix prefixes every environment override, e.g. ASSETPIPE_SERVER_PORT.
const EnvPrefix = "ASSETPIPE"

// BindEnv enables ASSETPIPE_<SECTION>_<KEY> environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, fills in defaults for anything left unset and
// validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// --no-open wins over server.open from any source.
	if v.IsSet("server.no-open") && v.GetBool("server.no-open") {
		cfg.Server.Open = false
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

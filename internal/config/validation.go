package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetpipe/internal/glob"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// Validate checks every value that the pipelines rely on. It returns the
// first problem found.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validatePaths,
		validateSteps,
		validateServer,
		validateWatch,
		validateLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validatePaths(cfg *Config) error {
	if strings.TrimSpace(cfg.Paths.Root) == "" {
		return &ValidationError{Field: "paths.root", Value: cfg.Paths.Root, Message: "must not be empty"}
	}

	out := filepath.ToSlash(filepath.Clean(cfg.Paths.Output))
	switch {
	case strings.TrimSpace(cfg.Paths.Output) == "":
		return &ValidationError{Field: "paths.output", Message: "must not be empty"}
	case filepath.IsAbs(cfg.Paths.Output):
		return &ValidationError{
			Field:       "paths.output",
			Value:       cfg.Paths.Output,
			Message:     "must be relative to paths.root",
			Suggestions: []string{"use a directory such as build or dist"},
		}
	case out == "." || strings.HasPrefix(out, ".."):
		return &ValidationError{
			Field:   "paths.output",
			Value:   cfg.Paths.Output,
			Message: "clean would delete the project root or a directory outside it",
		}
	}

	// Every build starts by deleting the output directory, so no source may
	// live inside it.
	for field, patterns := range cfg.sources() {
		for _, p := range patterns {
			p = strings.TrimPrefix(strings.TrimPrefix(p, "!"), "./")
			if p == out || strings.HasPrefix(p, out+"/") {
				return &ValidationError{
					Field:   field,
					Value:   p,
					Message: fmt.Sprintf("source pattern lies inside output directory %q", out),
				}
			}
		}
	}
	return nil
}

func validateSteps(cfg *Config) error {
	for field, patterns := range cfg.sources() {
		if _, err := glob.New(patterns...); err != nil {
			return &ValidationError{Field: field, Value: patterns, Message: err.Error()}
		}
	}

	if strings.TrimSpace(cfg.Styles.OutputName) == "" {
		return &ValidationError{Field: "styles.output_name", Message: "must not be empty"}
	}
	if strings.TrimSpace(cfg.Styles.Compiler) == "" {
		return &ValidationError{
			Field:       "styles.compiler",
			Message:     "must not be empty",
			Suggestions: []string{"install less with `npm install -g less` and set compiler: lessc"},
		}
	}
	if strings.ContainsAny(cfg.Sprite.OutputName, `/\`) || cfg.Sprite.OutputName == "" {
		return &ValidationError{Field: "sprite.output_name", Value: cfg.Sprite.OutputName, Message: "must be a plain file name"}
	}
	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		return &ValidationError{Field: "images.jpeg_quality", Value: cfg.Images.JPEGQuality, Message: "must be between 1 and 100"}
	}

	for field, dest := range map[string]string{
		"styles.dest": cfg.Styles.Dest,
		"html.dest":   cfg.HTML.Dest,
		"script.dest": cfg.Script.Dest,
		"images.dest": cfg.Images.Dest,
		"svg.dest":    cfg.SVG.Dest,
		"sprite.dest": cfg.Sprite.Dest,
	} {
		if err := validateDest(field, dest); err != nil {
			return err
		}
	}
	return nil
}

func validateDest(field, dest string) error {
	if dest == "" {
		return nil
	}
	clean := filepath.ToSlash(filepath.Clean(dest))
	if filepath.IsAbs(dest) || strings.HasPrefix(clean, "..") {
		return &ValidationError{Field: field, Value: dest, Message: "must stay inside the output directory"}
	}
	return nil
}

func validateServer(cfg *Config) error {
	// Port 0 lets the OS pick one, which tests rely on.
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Value:   cfg.Server.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Server.Port),
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(cfg.Server.Host, char) {
			return &ValidationError{Field: "server.host", Value: cfg.Server.Host, Message: "host contains dangerous character: " + char}
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return &ValidationError{Field: "watch.debounce", Value: cfg.Watch.Debounce, Message: "must not be negative"}
	}
	for field, patterns := range map[string][]string{
		"watch.styles": cfg.Watch.Styles,
		"watch.html":   cfg.Watch.HTML,
		"watch.script": cfg.Watch.Script,
	} {
		if len(patterns) == 0 {
			continue
		}
		if _, err := glob.New(patterns...); err != nil {
			return &ValidationError{Field: field, Value: patterns, Message: err.Error()}
		}
	}
	return nil
}

func validateLog(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return &ValidationError{
			Field:       "log.level",
			Value:       cfg.Log.Level,
			Message:     err.Error(),
			Suggestions: []string{"debug", "info", "warn", "error"},
		}
	}
	if cfg.Log.Format != "" && cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return &ValidationError{Field: "log.format", Value: cfg.Log.Format, Message: "must be text or json"}
	}
	return nil
}

// sources returns every step's source patterns keyed by config field.
func (c *Config) sources() map[string][]string {
	return map[string][]string{
		"styles.src": c.Styles.Src,
		"html.src":   c.HTML.Src,
		"script.src": c.Script.Src,
		"images.src": c.Images.Src,
		"svg.src":    c.SVG.Src,
		"sprite.src": c.Sprite.Src,
		"copy.src":   c.Copy.Src,
	}
}

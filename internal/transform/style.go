package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// StyleResult is the output of a style compiler.
type StyleResult struct {
	CSS []byte
	// SourceMap is a v3 source map, or nil when maps are disabled.
	SourceMap []byte
}

// StyleCompiler turns a stylesheet entry file (LESS) into CSS.
type StyleCompiler interface {
	Compile(ctx context.Context, entry string) (*StyleResult, error)
}

// Filter rewrites a buffer, e.g. an autoprefixer run over compiled CSS.
type Filter interface {
	Filter(ctx context.Context, in []byte) ([]byte, error)
}

// CommandCompiler runs an external compiler with the lessc calling
// convention: `<cmd> [--source-map --source-map-basepath=<dir>] <entry> <output>`.
// Map sources are relative to dir.
type CommandCompiler struct {
	args       []string
	dir        string
	sourceMaps bool
}

// NewCommandCompiler parses command (for example "lessc" or
// "npx lessc --math=always") into an executable and arguments.
func NewCommandCompiler(command, dir string, sourceMaps bool) (*CommandCompiler, error) {
	args, err := splitCommand(command)
	if err != nil {
		return nil, fmt.Errorf("style compiler: %w", err)
	}
	return &CommandCompiler{args: args, dir: dir, sourceMaps: sourceMaps}, nil
}

// Compile implements StyleCompiler.
func (c *CommandCompiler) Compile(ctx context.Context, entry string) (*StyleResult, error) {
	tmp, err := os.MkdirTemp("", "assetpipe-styles-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "out.css")

	args := append([]string{}, c.args[1:]...)
	if c.sourceMaps {
		args = append(args, "--source-map")
		if c.dir != "" {
			args = append(args, "--source-map-basepath="+c.dir)
		}
	}
	args = append(args, entry, out)

	cmd := exec.CommandContext(ctx, c.args[0], args...)
	cmd.Dir = c.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", c.args[0], ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w\n%s", c.args[0], err, strings.TrimSpace(stderr.String()))
	}

	css, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read compiled css: %w", err)
	}

	result := &StyleResult{CSS: stripSourceMappingURL(css)}
	if c.sourceMaps {
		sm, err := os.ReadFile(out + ".map")
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read source map: %w", err)
		}
		result.SourceMap = sm
	}

	return result, nil
}

// CommandFilter pipes a buffer through an external command's stdin/stdout.
type CommandFilter struct {
	args []string
	dir  string
}

// NewCommandFilter parses command into a filter. An empty command yields a
// nil Filter.
func NewCommandFilter(command, dir string) (Filter, error) {
	if strings.TrimSpace(command) == "" {
		return nil, nil
	}
	args, err := splitCommand(command)
	if err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	return &CommandFilter{args: args, dir: dir}, nil
}

// Filter implements Filter.
func (f *CommandFilter) Filter(ctx context.Context, in []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.args[0], f.args[1:]...)
	cmd.Dir = f.dir
	cmd.Stdin = bytes.NewReader(in)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w\n%s", f.args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// splitCommand splits a command line on whitespace. Commands never run
// through a shell, so shell metacharacters are rejected outright.
func splitCommand(command string) ([]string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("command cannot be empty")
	}
	for _, p := range parts {
		if strings.ContainsAny(p, ";&|$`<>\"'") {
			return nil, fmt.Errorf("argument %q contains a shell metacharacter", p)
		}
	}
	return parts, nil
}

// stripSourceMappingURL removes a trailing sourceMappingURL comment written
// by the compiler; the styles task appends its own.
func stripSourceMappingURL(css []byte) []byte {
	out, _, _ := ExtractInlineSourceMap(css)
	return out
}

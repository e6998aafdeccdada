package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/glob"
)

func globSet(t *testing.T, patterns ...string) glob.Set {
	t.Helper()
	s, err := glob.New(patterns...)
	require.NoError(t, err)
	return s
}

type recorded struct {
	rule  string
	paths []string
}

func TestRouterHandle(t *testing.T) {
	root := t.TempDir()
	var calls []recorded
	record := func(name string) func(context.Context, []string) error {
		return func(_ context.Context, paths []string) error {
			calls = append(calls, recorded{rule: name, paths: paths})
			return nil
		}
	}

	router, err := NewRouter(root, nil,
		Rule{Name: "styles", Pattern: globSet(t, "source/less/**/*.less"), Action: record("styles")},
		Rule{Name: "html", Pattern: globSet(t, "source/*.html"), Action: record("html")},
		Rule{Name: "script", Pattern: globSet(t, "source/js/script.js"), Action: record("script")},
	)
	require.NoError(t, err)

	events := []ChangeEvent{
		{Path: filepath.Join(root, "source", "less", "blocks", "header.less")},
		{Path: filepath.Join(root, "source", "less", "style.less")},
		{Path: filepath.Join(root, "source", "index.html")},
		{Path: filepath.Join(root, "source", "images", "logo.png")},
	}
	require.NoError(t, router.Handle(context.Background(), events))

	require.Len(t, calls, 2)
	assert.Equal(t, "styles", calls[0].rule)
	assert.Equal(t, []string{"source/less/blocks/header.less", "source/less/style.less"}, calls[0].paths)
	assert.Equal(t, "html", calls[1].rule)
	assert.Equal(t, []string{"source/index.html"}, calls[1].paths)
}

func TestRouterIgnoresPathsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	called := false
	router, err := NewRouter(root, nil, Rule{
		Name:    "all",
		Pattern: globSet(t, "**/*"),
		Action: func(context.Context, []string) error {
			called = true
			return nil
		},
	})
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "elsewhere.html")
	require.NoError(t, router.Handle(context.Background(), []ChangeEvent{{Path: outside}}))
	assert.False(t, called)
}

func TestRouterCombinesRuleErrors(t *testing.T) {
	root := t.TempDir()
	errStyles := errors.New("styles broke")
	errHTML := errors.New("html broke")

	router, err := NewRouter(root, nil,
		Rule{Name: "styles", Pattern: globSet(t, "*.less"), Action: func(context.Context, []string) error { return errStyles }},
		Rule{Name: "html", Pattern: globSet(t, "*.html"), Action: func(context.Context, []string) error { return errHTML }},
	)
	require.NoError(t, err)

	err = router.Handle(context.Background(), []ChangeEvent{
		{Path: filepath.Join(root, "a.less")},
		{Path: filepath.Join(root, "b.html")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errStyles)
	assert.ErrorIs(t, err, errHTML)
}

func TestRouterDirs(t *testing.T) {
	root := t.TempDir()
	noop := func(context.Context, []string) error { return nil }
	router, err := NewRouter(root, nil,
		Rule{Name: "styles", Pattern: globSet(t, "source/less/**/*.less"), Action: noop},
		Rule{Name: "html", Pattern: globSet(t, "source/*.html"), Action: noop},
		Rule{Name: "script", Pattern: globSet(t, "source/js/script.js"), Action: noop},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "source", "less"),
		filepath.Join(root, "source"),
		filepath.Join(root, "source", "js"),
	}, router.Dirs())
}

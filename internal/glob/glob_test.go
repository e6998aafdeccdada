package glob

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceTree() fstest.MapFS {
	return fstest.MapFS{
		"source/index.html":              {Data: []byte("<html></html>")},
		"source/about.html":              {Data: []byte("<html></html>")},
		"source/partials/nav.html":       {Data: []byte("<nav></nav>")},
		"source/favicon.ico":             {Data: []byte{0}},
		"source/images/hero.jpg":         {Data: []byte{1}},
		"source/images/icons/arrow.png":  {Data: []byte{2}},
		"source/images/map.svg":          {Data: []byte("<svg/>")},
		"source/images/logos/acme.svg":   {Data: []byte("<svg/>")},
		"source/images/logos/globex.svg": {Data: []byte("<svg/>")},
		"source/less/style.less":         {Data: []byte("a{}")},
		"source/less/blocks/header.less": {Data: []byte("b{}")},
	}
}

func mustSet(t testing.TB, patterns ...string) Set {
	t.Helper()
	s, err := New(patterns...)
	require.NoError(t, err)
	return s
}

func paths(ms []Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Path)
	}
	return out
}

func TestNewRejectsInvalidPatterns(t *testing.T) {
	_, err := New("source/[*.html")
	assert.Error(t, err)

	_, err = New("!source/*.html")
	assert.Error(t, err, "a set with only excludes selects nothing")

	_, err = New()
	assert.Error(t, err)
}

func TestExpandTopLevelOnly(t *testing.T) {
	s := mustSet(t, "source/*.html")
	ms, err := s.Expand(sourceTree())
	require.NoError(t, err)

	assert.Equal(t, []string{"source/about.html", "source/index.html"}, paths(ms))
	assert.Equal(t, "about.html", ms[0].Rel)
}

func TestExpandRecursiveAlternation(t *testing.T) {
	s := mustSet(t, "source/images/**/*.{jpg,png}")
	ms, err := s.Expand(sourceTree())
	require.NoError(t, err)

	require.Len(t, ms, 2)
	assert.Equal(t, "source/images/hero.jpg", ms[0].Path)
	assert.Equal(t, "hero.jpg", ms[0].Rel)
	assert.Equal(t, "icons/arrow.png", ms[1].Rel)
}

func TestExpandNegation(t *testing.T) {
	svg := mustSet(t, "source/images/*.svg", "!source/images/logos/*.svg")
	ms, err := svg.Expand(sourceTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"source/images/map.svg"}, paths(ms))

	sprite := mustSet(t, "source/images/logos/*.svg")
	ms, err = sprite.Expand(sourceTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"source/images/logos/acme.svg", "source/images/logos/globex.svg"}, paths(ms))
}

func TestExpandNoMatches(t *testing.T) {
	ms, err := mustSet(t, "source/js/*.js").Expand(sourceTree())
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestExpandDeduplicatesAcrossPatterns(t *testing.T) {
	s := mustSet(t, "source/*.html", "source/index.html")
	ms, err := s.Expand(sourceTree())
	require.NoError(t, err)
	assert.Len(t, ms, 2)
}

func TestMatches(t *testing.T) {
	styles := mustSet(t, "source/less/**/*.less")
	assert.True(t, styles.Matches("source/less/style.less"))
	assert.True(t, styles.Matches("source/less/blocks/header.less"))
	assert.True(t, styles.Matches("./source/less/style.less"))
	assert.False(t, styles.Matches("source/css/style.css"))

	html := mustSet(t, "source/*.html")
	assert.True(t, html.Matches("source/index.html"))
	assert.False(t, html.Matches("source/partials/nav.html"))
}

func TestBase(t *testing.T) {
	tests := map[string]string{
		"source/images/**/*.{jpg,png}": "source/images",
		"source/*.html":                "source",
		"source/js/script.js":          "source/js",
		"*.ico":                        ".",
		"./source/fonts/*.woff2":       "source/fonts",
	}
	for pattern, expected := range tests {
		t.Run(pattern, func(t *testing.T) {
			assert.Equal(t, expected, Base(pattern))
		})
	}
}

func TestBases(t *testing.T) {
	s := mustSet(t, "source/fonts/*.{woff2,woff}", "source/*.ico", "source/fonts/*.ttf", "!source/x.ico")
	assert.Equal(t, []string{"source/fonts", "source"}, s.Bases())
}

func TestDisjoint(t *testing.T) {
	fsys := sourceTree()
	svg := mustSet(t, "source/images/*.svg", "!source/images/logos/*.svg")
	sprite := mustSet(t, "source/images/logos/*.svg")

	ok, err := Disjoint(fsys, svg, sprite)
	require.NoError(t, err)
	assert.True(t, ok)

	overlapping := mustSet(t, "source/images/**/*.svg")
	ok, err = Disjoint(fsys, overlapping, sprite)
	require.NoError(t, err)
	assert.False(t, ok)
}

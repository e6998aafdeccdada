// Package transform holds the external transformations the asset tasks
// delegate to: style compilation, minification, image re-encoding and SVG
// sprite assembly. Tasks only see the small interfaces declared here.
package transform

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/beevik/etree"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Media types understood by Minifier.
const (
	MediaCSS  = "text/css"
	MediaHTML = "text/html"
	MediaJS   = "application/javascript"
	MediaSVG  = "image/svg+xml"
)

// Minifier shrinks text assets by media type.
type Minifier interface {
	Minify(mediaType string, src []byte) ([]byte, error)
}

// MinifyOptions tunes the HTML minifier.
type MinifyOptions struct {
	// CollapseWhitespace removes whitespace between block elements and
	// collapses runs of whitespace in text to a single space.
	CollapseWhitespace bool
}

// TdewolffMinifier implements Minifier with github.com/tdewolff/minify.
type TdewolffMinifier struct {
	m *minify.M
}

// NewMinifier creates a minifier for CSS, HTML, JavaScript and SVG.
func NewMinifier(opts MinifyOptions) *TdewolffMinifier {
	m := minify.New()
	m.AddFunc(MediaCSS, css.Minify)
	m.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
		KeepWhitespace:      !opts.CollapseWhitespace,
	})
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFunc(MediaSVG, svg.Minify)

	return &TdewolffMinifier{m: m}
}

// Minify implements Minifier.
func (t *TdewolffMinifier) Minify(mediaType string, src []byte) ([]byte, error) {
	if mediaType == MediaSVG {
		var err error
		if src, err = unprefixXlink(src); err != nil {
			return nil, fmt.Errorf("minify %s: %w", mediaType, err)
		}
	}

	out, err := t.m.Bytes(mediaType, src)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", mediaType, err)
	}
	return out, nil
}

// unprefixXlink rewrites xlink:href to the plain SVG 2 href. The SVG
// minifier drops namespaced attributes, which would cut <use>, <image> and
// gradient references.
func unprefixXlink(src []byte) ([]byte, error) {
	if !bytes.Contains(src, []byte("xlink:href")) {
		return src, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(src); err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if root := doc.Root(); root != nil {
		unprefixElement(root)
	}
	return doc.WriteToBytes()
}

// unprefixElement walks el and its descendants. An element carrying both
// attributes keeps its plain href.
func unprefixElement(el *etree.Element) {
	plain, linked := -1, -1
	for i, a := range el.Attr {
		if a.Key != "href" {
			continue
		}
		switch a.Space {
		case "":
			plain = i
		case "xlink":
			linked = i
		}
	}
	switch {
	case linked >= 0 && plain >= 0:
		el.Attr = append(el.Attr[:linked], el.Attr[linked+1:]...)
	case linked >= 0:
		el.Attr[linked].Space = ""
	}

	for _, child := range el.ChildElements() {
		unprefixElement(child)
	}
}

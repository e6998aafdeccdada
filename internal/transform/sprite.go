package transform

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// SpriteSource is one SVG folded into a sprite.
type SpriteSource struct {
	// ID becomes the <symbol> id; callers use the file's base name.
	ID      string
	Content []byte
}

// SpriteAssembler combines SVG documents into a single sprite.
type SpriteAssembler interface {
	Assemble(sources []SpriteSource) ([]byte, error)
}

// SymbolSprite builds an inline SVG sprite: one <symbol> per source, no XML
// prolog, suitable for pasting into an HTML document or referencing with
// <use href="sprite.svg#id">.
type SymbolSprite struct{}

// NewSpriteAssembler returns the default assembler.
func NewSpriteAssembler() *SymbolSprite {
	return &SymbolSprite{}
}

// symbolAttrs are the root <svg> attributes carried onto the <symbol>.
var symbolAttrs = []string{"viewBox", "preserveAspectRatio", "class", "style", "fill", "stroke"}

// Assemble implements SpriteAssembler.
func (SymbolSprite) Assemble(sources []SpriteSource) ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("svg")
	root.CreateAttr("xmlns", "http://www.w3.org/2000/svg")

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate sprite id %q", src.ID)
		}
		seen[src.ID] = true

		in := etree.NewDocument()
		if err := in.ReadFromBytes(src.Content); err != nil {
			return nil, fmt.Errorf("parse %s: %w", src.ID, err)
		}
		svg := in.Root()
		if svg == nil || svg.Tag != "svg" {
			return nil, fmt.Errorf("%s: root element is not <svg>", src.ID)
		}

		symbol := root.CreateElement("symbol")
		symbol.CreateAttr("id", src.ID)
		for _, name := range symbolAttrs {
			if v := svg.SelectAttrValue(name, ""); v != "" {
				symbol.CreateAttr(name, v)
			}
		}
		// Derive a viewBox from width/height when the source only has those.
		if symbol.SelectAttr("viewBox") == nil {
			w, h := svg.SelectAttrValue("width", ""), svg.SelectAttrValue("height", "")
			if w != "" && h != "" {
				symbol.CreateAttr("viewBox", fmt.Sprintf("0 0 %s %s", trimUnit(w), trimUnit(h)))
			}
		}

		for _, child := range svg.ChildElements() {
			symbol.AddChild(child.Copy())
		}
	}

	return doc.WriteToBytes()
}

// SpriteID derives a symbol id from a file path: "logos/acme.svg" -> "acme".
func SpriteID(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func trimUnit(v string) string {
	return strings.TrimSuffix(strings.TrimSpace(v), "px")
}

package tables

import "github.com/microcosm-cc/bluemonday"

// Sanitizer cleans text before it is handed to a renderer
type Sanitizer interface {
	Sanitize(string) string
}

var formattingElements = []string{
	"b", "big", "br", "code", "del", "em", "font", "i", "ins", "o", "s",
	"small", "span", "strike", "strong", "sub", "sup", "tt", "u",
}

// UntrustedPolicy returns the sanitizer used for ordinary cells, labels and
// titles
func UntrustedPolicy() *bluemonday.Policy {
	return bluemonday.UGCPolicy()
}

// InternalPolicy returns the sanitizer for cells explicitly flagged as
// carrying trusted markup. It allows inline formatting and a small subset of
// SVG sufficient for simple diagrams. Scripts, event handlers and
// foreignObject are never allowed
func InternalPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(formattingElements...)
	p.AllowElements("svg", "title", "g", "polygon", "path", "text")
	p.AllowElementsContent("title")

	p.AllowAttrs("width", "height", "viewBox", "xmlns").OnElements("svg")
	p.AllowAttrs("id", "class", "transform").OnElements("g")
	p.AllowAttrs("fill", "stroke", "stroke-dasharray").
		OnElements("polygon", "path", "text")
	p.AllowAttrs("x", "y", "text-anchor", "font-family", "font-size").
		OnElements("text")
	p.AllowAttrs("points").OnElements("polygon")
	p.AllowAttrs("d").OnElements("path")

	p.RequireNoFollowOnLinks(true)
	return p
}

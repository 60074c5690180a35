package dom

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderBody writes the panel element tree as an HTML fragment, preceded by
// a <style> element holding the injected stylesheets.
func (d *Document) RenderBody(w io.Writer) error {
	if len(d.css) > 0 {
		style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: strings.Join(d.css, "\n")})
		if err := html.Render(w, style); err != nil {
			return err
		}
	}
	return html.Render(w, toNode(d.body))
}

// HTML renders the fragment to a string.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	if err := d.RenderBody(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func toNode(e *Element) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     e.Tag,
		DataAtom: atom.Lookup([]byte(e.Tag)),
	}
	if e.ID != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: e.ID})
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: e.Attrs[k]})
	}
	if css := e.CSS(); css != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: css})
	}
	if e.Text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: e.Text})
	}
	for _, c := range e.Children {
		n.AppendChild(toNode(c))
	}
	return n
}

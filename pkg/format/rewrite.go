package format

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rewriteBlocks walks the sanitized HTML tree and replaces every pre > code
// with a container: diagram-tagged fences get a copy control plus a diagram
// placeholder, everything else a copy control plus a highlight-ready code
// element. Working on the parsed tree means the entity-decoded fence source
// comes straight from the text nodes.
func rewriteBlocks(sanitized string) (string, []Block, error) {
	bodyCtx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(sanitized), bodyCtx)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to parse sanitized html")
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	var pres []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Pre {
			pres = append(pres, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var blocks []Block
	for _, pre := range pres {
		code := childElement(pre, atom.Code)
		if code == nil {
			continue
		}
		b := Block{
			Lang:   langFromClass(attrVal(code, "class")),
			Source: textContent(code),
		}
		b.Payload = url.PathEscape(b.Source)

		var container *html.Node
		if b.Lang == DiagramLang {
			b.Kind = BlockDiagram
			container = diagramContainer(b)
		} else {
			b.Kind = BlockCode
			container = codeContainer(b)
		}
		blocks = append(blocks, b)

		pre.Parent.InsertBefore(container, pre)
		pre.Parent.RemoveChild(pre)
	}

	var sb strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", nil, errors.Wrap(err, "failed to render html")
		}
	}
	return sb.String(), blocks, nil
}

func diagramContainer(b Block) *html.Node {
	div := elem(atom.Div, "div", attr("class", "diagram-block"))
	div.AppendChild(copyButton(b.Payload))
	placeholder := elem(atom.Div, "div", attr("class", "mermaid"))
	placeholder.AppendChild(textNode(b.Source))
	div.AppendChild(placeholder)
	return div
}

func codeContainer(b Block) *html.Node {
	div := elem(atom.Div, "div", attr("class", "code-block"))
	div.AppendChild(copyButton(b.Payload))
	pre := elem(atom.Pre, "pre")
	var code *html.Node
	if b.Lang != "" {
		code = elem(atom.Code, "code", attr("class", "language-"+b.Lang))
	} else {
		code = elem(atom.Code, "code")
	}
	code.AppendChild(textNode(b.Source))
	pre.AppendChild(code)
	div.AppendChild(pre)
	return div
}

func copyButton(payload string) *html.Node {
	btn := elem(atom.Button, "button",
		attr("class", "copy-button"),
		attr("type", "button"),
		attr("data-code", payload))
	btn.AppendChild(textNode("copy"))
	return btn
}

func elem(a atom.Atom, tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag, Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func childElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func langFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		if rest, ok := strings.CutPrefix(c, "language-"); ok {
			return rest
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

package capture

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOMSnapshot is the normalized structural view of the tracked subtree.
// Normalization is pure Go over the serialized document, so it can be
// re-applied to stored baselines without a browser.
type DOMSnapshot struct {
	Root *DOMNode `json:"root"`
}

// DOMNode is one element in the normalized tree. Attribute order is not
// represented; maps serialize with sorted keys under canonical encoding.
type DOMNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*DOMNode        `json:"children,omitempty"`
}

// volatileAttrPrefixes marks attributes that carry per-run values and must
// not participate in structural comparison.
var volatileAttrPrefixes = []string{
	"data-instance-",
	"data-transient-",
	"data-rendered-at",
}

// volatileAttrs drops exact attribute names. Inline style carries runtime
// values; the computed-style subset is compared through the layout artifact
// instead.
var volatileAttrs = map[string]bool{
	"style": true,
}

// NormalizeDOM parses the serialized document, locates the tracked root, and
// produces the normalized subtree. Script, style, and comment nodes are
// dropped; whitespace runs collapse to single spaces; volatile attributes
// are removed. Normalization is idempotent: serializing a snapshot back to
// HTML and normalizing again yields an equal snapshot.
func NormalizeDOM(src, trackedRoot string) (*DOMSnapshot, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("capture: parse html: %w", err)
	}

	root := findBySelector(doc, trackedRoot)
	if root == nil {
		return nil, fmt.Errorf("capture: tracked root %q not found in document", trackedRoot)
	}

	return &DOMSnapshot{Root: normalizeNode(root)}, nil
}

func normalizeNode(n *html.Node) *DOMNode {
	out := &DOMNode{Tag: n.Data}

	for _, a := range n.Attr {
		if volatileAttr(a.Key) {
			continue
		}
		if out.Attrs == nil {
			out.Attrs = make(map[string]string)
		}
		out.Attrs[a.Key] = a.Val
	}

	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			text.WriteString(c.Data)
			text.WriteByte(' ')
		case html.ElementNode:
			if skipElement(c) {
				continue
			}
			out.Children = append(out.Children, normalizeNode(c))
		}
	}
	out.Text = collapseWhitespace(text.String())
	return out
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

func volatileAttr(key string) bool {
	if volatileAttrs[key] {
		return true
	}
	for _, p := range volatileAttrPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findBySelector locates the first element matching a single simple selector:
// ".class", "#id", or a bare tag name. Catalog tracked roots stay within this
// subset on purpose.
func findBySelector(n *html.Node, selector string) *html.Node {
	if n.Type == html.ElementNode && matchesSelector(n, selector) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBySelector(c, selector); found != nil {
			return found
		}
	}
	return nil
}

func matchesSelector(n *html.Node, selector string) bool {
	switch {
	case strings.HasPrefix(selector, "."):
		want := selector[1:]
		for _, a := range n.Attr {
			if a.Key == "class" {
				for _, cls := range strings.Fields(a.Val) {
					if cls == want {
						return true
					}
				}
			}
		}
		return false
	case strings.HasPrefix(selector, "#"):
		want := selector[1:]
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == want {
				return true
			}
		}
		return false
	default:
		return n.Data == selector
	}
}

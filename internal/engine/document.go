package engine

import (
	"html"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageTemplate wraps fragments in a complete HTML5 document.
const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
</head>
<body>
%s
</body>
</html>`

// baseCSS applies when the document sets no font of its own.
const baseCSS = `body { font-family: sans-serif; font-size: 11pt; line-height: 1.4; }
pre { white-space: pre-wrap; font-family: monospace; }`

// fontFamilyDecl captures the value of CSS font-family declarations.
var fontFamilyDecl = regexp.MustCompile(`(?i)font-family\s*:\s*([^;}"]+)`)

// document is a parsed HTML page being prepared for printing.
type document struct {
	root *xhtml.Node
}

// parseDocument parses content, wrapping fragments in pageTemplate.
func parseDocument(content string) (*document, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))
	if !strings.HasPrefix(trimmed, "<!doctype") && !strings.HasPrefix(trimmed, "<html") {
		content = strings.Replace(pageTemplate, "%s", content, 1)
	}
	root, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &document{root: root}, nil
}

// textDocument renders plain text as an escaped <pre> block.
func textDocument(text string) (*document, error) {
	return parseDocument(strings.Replace(pageTemplate, "%s", "<pre>"+html.EscapeString(text)+"</pre>", 1))
}

// rewriteRelativePaths turns relative img[src] and a[href] values into
// file:// URLs under sourceDir. Paths escaping sourceDir are left alone.
func (d *document) rewriteRelativePaths(sourceDir string) error {
	if sourceDir == "" {
		return nil
	}
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return err
	}
	walk(d.root, func(n *xhtml.Node) {
		switch n.DataAtom {
		case atom.Img:
			rewriteAttr(n, "src", abs)
		case atom.A:
			rewriteAttr(n, "href", abs)
		}
	})
	return nil
}

// fontDeclarations returns the family list of every font-family
// declaration in style attributes and <style> elements, in document order.
func (d *document) fontDeclarations() [][]string {
	var decls [][]string
	collect := func(css string) {
		for _, m := range fontFamilyDecl.FindAllStringSubmatch(css, -1) {
			var decl []string
			for name := range strings.SplitSeq(m[1], ",") {
				name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), "!important"))
				if name = strings.Trim(name, `'"`); name != "" {
					decl = append(decl, name)
				}
			}
			if len(decl) > 0 {
				decls = append(decls, decl)
			}
		}
	}
	walk(d.root, func(n *xhtml.Node) {
		if n.Type != xhtml.ElementNode {
			return
		}
		if n.DataAtom == atom.Style && n.FirstChild != nil {
			collect(n.FirstChild.Data)
		}
		for _, a := range n.Attr {
			if a.Key == "style" {
				collect(a.Val)
			}
		}
	})
	return decls
}

// injectCSS adds css as the first <style> in <head>, so document styles
// still override it.
func (d *document) injectCSS(css string) {
	head := find(d.root, atom.Head)
	if head == nil || css == "" {
		return
	}
	style := &xhtml.Node{Type: xhtml.ElementNode, DataAtom: atom.Style, Data: "style"}
	style.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: css})
	head.InsertBefore(style, head.FirstChild)
}

func (d *document) render() (string, error) {
	var buf strings.Builder
	if err := xhtml.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func walk(n *xhtml.Node, fn func(*xhtml.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *xhtml.Node, a atom.Atom) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func rewriteAttr(n *xhtml.Node, key, sourceDir string) {
	for i, attr := range n.Attr {
		if attr.Key != key || !isRelativePath(attr.Val) {
			continue
		}
		abs := filepath.Join(sourceDir, attr.Val)
		if !isPathUnderDir(abs, sourceDir) {
			continue
		}
		n.Attr[i].Val = fileURL(abs)
	}
}

func isRelativePath(path string) bool {
	if path == "" || strings.HasPrefix(path, "#") || strings.HasPrefix(path, "//") {
		return false
	}
	if u, err := url.Parse(path); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return false // http:, https:, file:, data:, mailto:
	}
	return !filepath.IsAbs(path)
}

func isPathUnderDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// fileURL converts an absolute path to a file:// URL, Windows paths included.
func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

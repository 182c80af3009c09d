// Package markup provides the HTML inspection shared by classification,
// extraction and link discovery.
package markup

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a parsed HTML document.
type Page struct {
	root *html.Node
}

// Parse parses data as HTML. The tokenizer recovers from malformed input,
// so an error is only returned for failed reads.
func Parse(data []byte) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Page{root: root}, nil
}

// IsHTML reports whether a content type or the leading bytes of data look
// like HTML.
func IsHTML(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "text/plain") && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}
	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// Title returns og:title, then <title>, then the first <h1>.
func (p *Page) Title() string {
	if t := p.Meta("og:title"); t != "" {
		return t
	}
	if n := p.first(atom.Title); n != nil {
		if t := collapse(textOf(n)); t != "" {
			return t
		}
	}
	if n := p.first(atom.H1); n != nil {
		return collapse(textOf(n))
	}
	return ""
}

// Meta returns the content of the first <meta> whose name or property
// equals key, compared case-insensitively.
func (p *Page) Meta(key string) string {
	var found string
	walk(p.root, func(n *html.Node) bool {
		if n.DataAtom != atom.Meta {
			return true
		}
		if strings.EqualFold(attr(n, "name"), key) || strings.EqualFold(attr(n, "property"), key) {
			found = strings.TrimSpace(attr(n, "content"))
			return false
		}
		return true
	})
	return found
}

// MetaAll returns the content of every <meta> named key.
func (p *Page) MetaAll(key string) []string {
	var out []string
	walk(p.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Meta &&
			(strings.EqualFold(attr(n, "name"), key) || strings.EqualFold(attr(n, "property"), key)) {
			if v := strings.TrimSpace(attr(n, "content")); v != "" {
				out = append(out, v)
			}
		}
		return true
	})
	return out
}

// Has reports whether the page contains an element of the given tag.
func (p *Page) Has(tag atom.Atom) bool {
	return p.first(tag) != nil
}

// Count returns the number of elements of the given tag.
func (p *Page) Count(tag atom.Atom) int {
	count := 0
	walk(p.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			count++
		}
		return true
	})
	return count
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Head:     true,
}

var boilerplate = map[atom.Atom]bool{
	atom.Nav:    true,
	atom.Header: true,
	atom.Footer: true,
	atom.Aside:  true,
	atom.Form:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Li: true, atom.Br: true, atom.Tr: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Pre: true, atom.Figcaption: true, atom.Main: true,
}

// Text returns the visible text of the whole page, one block per line.
func (p *Page) Text() string {
	return blockText(p.root, false)
}

// MainText returns the visible text of <article>, or <main>, or the body
// with navigation and page chrome removed.
func (p *Page) MainText() string {
	if n := p.first(atom.Article); n != nil {
		return blockText(n, true)
	}
	if n := p.first(atom.Main); n != nil {
		return blockText(n, true)
	}
	if n := p.first(atom.Body); n != nil {
		return blockText(n, true)
	}
	return blockText(p.root, true)
}

// FragmentText returns the text of an HTML or JATS fragment with tags
// removed, entities decoded and whitespace collapsed.
func FragmentText(fragment string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return collapse(fragment)
	}

	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(textOf(n))
	}
	return collapse(sb.String())
}

// Link is an anchor resolved against the page location.
type Link struct {
	URL  string
	Text string
}

// Links returns the absolute http(s) targets of every <a href> in document
// order, without duplicates. Relative links are resolved against base and
// any <base href>.
func (p *Page) Links(base string) []Link {
	baseURL, _ := url.Parse(base)
	if n := p.first(atom.Base); n != nil {
		if href := attr(n, "href"); href != "" {
			if u, err := url.Parse(href); err == nil {
				if baseURL != nil {
					u = baseURL.ResolveReference(u)
				}
				baseURL = u
			}
		}
	}

	seen := make(map[string]bool)
	var links []Link
	walk(p.root, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return true
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		if baseURL != nil {
			u = baseURL.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return true
		}
		u.Fragment = ""
		abs := u.String()
		if seen[abs] {
			return true
		}
		seen[abs] = true
		links = append(links, Link{URL: abs, Text: collapse(textOf(n))})
		return true
	})
	return links
}

func (p *Page) first(tag atom.Atom) *html.Node {
	var found *html.Node
	walk(p.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits nodes depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode || n.Type == html.DocumentNode {
		if n.Type == html.ElementNode && !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func blockText(root *html.Node, dropChrome bool) string {
	var lines []string
	var cur strings.Builder

	flush := func() {
		if line := collapse(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] || (dropChrome && boilerplate[n.DataAtom]) {
				return
			}
			if blocks[n.DataAtom] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	flush()

	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

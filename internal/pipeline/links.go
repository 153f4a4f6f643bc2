package pipeline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Link placeholder kinds understood in article content, written as
// {static}path or |static|path.
const (
	LinkStatic   = "static"
	LinkFilename = "filename"
)

// LinkResolver maps a placeholder target to its published URL.
// ok is false when the target is unknown; the link is then left as written.
type LinkResolver func(kind, target string) (url string, ok bool)

// linkAttrs lists the attributes rewritten per element.
var linkAttrs = map[string][]string{
	"a":      {"href"},
	"img":    {"src"},
	"source": {"src"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"link":   {"href"},
}

// RewriteLinks replaces {static} and {filename} placeholders in link
// attributes of an HTML fragment. Unresolved targets are returned so the
// caller can warn about them.
func RewriteLinks(fragment string, resolve LinkResolver) (string, []string, error) {
	if resolve == nil || !hasPlaceholder(fragment) {
		return fragment, nil, nil
	}

	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", nil, err
	}

	var unresolved []string
	for _, n := range nodes {
		rewriteNode(n, resolve, &unresolved)
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", nil, err
		}
	}
	return buf.String(), unresolved, nil
}

func hasPlaceholder(s string) bool {
	s = unescapeDelims(s)
	for _, kind := range []string{LinkStatic, LinkFilename} {
		if strings.Contains(s, "{"+kind+"}") || strings.Contains(s, "|"+kind+"|") {
			return true
		}
	}
	return false
}

var delimUnescaper = strings.NewReplacer("%7B", "{", "%7D", "}", "%7C", "|", "%7b", "{", "%7d", "}", "%7c", "|")

// unescapeDelims undoes the percent-encoding Goldmark applies to the
// placeholder delimiters in link destinations.
func unescapeDelims(s string) string {
	return delimUnescaper.Replace(s)
}

// rewriteNode traverses the DOM and rewrites placeholder links.
func rewriteNode(n *html.Node, resolve LinkResolver, unresolved *[]string) {
	if n.Type == html.ElementNode {
		for _, key := range linkAttrs[n.Data] {
			rewriteAttr(n, key, resolve, unresolved)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteNode(c, resolve, unresolved)
	}
}

func rewriteAttr(n *html.Node, key string, resolve LinkResolver, unresolved *[]string) {
	for i, attr := range n.Attr {
		if attr.Key != key {
			continue
		}
		kind, target, ok := SplitPlaceholder(attr.Val)
		if !ok {
			continue
		}
		url, found := resolve(kind, target)
		if !found {
			*unresolved = append(*unresolved, attr.Val)
			continue
		}
		n.Attr[i].Val = url
	}
}

// SplitPlaceholder splits "{static}images/a.png" into its kind and target.
// A trailing #fragment or ?query stays on the target.
func SplitPlaceholder(value string) (kind, target string, ok bool) {
	value = unescapeDelims(value)
	for _, k := range []string{LinkStatic, LinkFilename} {
		for _, prefix := range []string{"{" + k + "}", "|" + k + "|"} {
			if rest, found := strings.CutPrefix(value, prefix); found {
				return k, rest, true
			}
		}
	}
	return "", "", false
}

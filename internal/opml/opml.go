// Package opml reads and writes OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Entry is one subscription flattened out of the outline tree. CategoryPath
// preserves the nesting, outermost first.
type Entry struct {
	CategoryPath []string
	Title        string
	URL          string
}

// Parse decodes an OPML document into a flat entry list.
func Parse(r io.Reader) ([]Entry, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var entries []Entry
	var walk func(outlines []Outline, path []string)
	walk = func(outlines []Outline, path []string) {
		for _, o := range outlines {
			if strings.TrimSpace(o.XMLURL) != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				entries = append(entries, Entry{
					CategoryPath: append([]string{}, path...),
					Title:        title,
					URL:          strings.TrimSpace(o.XMLURL),
				})
				continue
			}
			if len(o.Outlines) > 0 {
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, append(path, name))
			}
		}
	}
	walk(doc.Body.Outlines, nil)
	return entries, nil
}

// Encode renders entries back into an OPML document, rebuilding the
// category nesting from each entry's path.
func Encode(title string, entries []Entry) ([]byte, error) {
	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}

	type node struct {
		outline  Outline
		children map[string]*node
		order    []string
	}
	root := &node{children: make(map[string]*node)}

	for _, e := range entries {
		cur := root
		for _, name := range e.CategoryPath {
			child, ok := cur.children[name]
			if !ok {
				child = &node{
					outline:  Outline{Text: name, Title: name},
					children: make(map[string]*node),
				}
				cur.children[name] = child
				cur.order = append(cur.order, name)
			}
			cur = child
		}
		cur.outline.Outlines = append(cur.outline.Outlines, Outline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		})
	}

	var build func(n *node) []Outline
	build = func(n *node) []Outline {
		var out []Outline
		for _, name := range n.order {
			child := n.children[name]
			folder := child.outline
			folder.Outlines = append(build(child), folder.Outlines...)
			out = append(out, folder)
		}
		return out
	}
	doc.Body.Outlines = append(build(root), root.outline.Outlines...)

	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode opml: %w", err)
	}
	return append([]byte(xml.Header), payload...), nil
}

// File: internal/artifact/report.go
package artifact

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html"
)

var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// A broad XPath for interactive elements; refined filtering happens on
// the decoded nodes.
const interactiveXPath = `
    //a[@href] | //button | //input | //textarea | //select |
    //summary |
    //*[@contenteditable='true' or @contenteditable=''] |
    //*[@role='button' or @role='link' or @role='tab' or @role='menuitem' or @role='textbox']
`

// Candidate is one interactive element from the snapshot, with the
// attributes the resolution strategies match on.
type Candidate struct {
	Tag         string `json:"tag"`
	Text        string `json:"text,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Role        string `json:"role,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// ExtractCandidates parses the snapshot markup and lists the elements
// the resolution strategies would consider, for selector debugging.
func ExtractCandidates(markup string) ([]Candidate, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	nodes := htmlquery.Find(doc, interactiveXPath)

	candidates := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		candidates = append(candidates, candidateFrom(node))
	}
	return candidates, nil
}

func candidateFrom(node *html.Node) Candidate {
	c := Candidate{
		Tag:  node.Data,
		Text: collapse(htmlquery.InnerText(node), 80),
	}
	for _, attr := range node.Attr {
		switch attr.Key {
		case "aria-label":
			c.AriaLabel = attr.Val
		case "role":
			c.Role = attr.Val
		case "placeholder", "data-placeholder":
			if c.Placeholder == "" {
				c.Placeholder = attr.Val
			}
		}
	}
	return c
}

// collapse squeezes runs of whitespace to single spaces and bounds the
// length, so deeply nested markup yields readable report lines.
func collapse(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

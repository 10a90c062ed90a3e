package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// controlSelector matches the UI chrome that a chat app renders inside the
// answer container: copy/feedback buttons, their icons, and screen-reader
// helpers. None of it is answer content.
const controlSelector = `button, svg, [role="toolbar"], [aria-hidden="true"], .sr-only`

// PruneControls parses the answer markup, removes every node matching
// controlSelector, and re-renders the remainder.
//
// If parsing fails the original markup is returned unchanged so downstream
// conversion still has something to work with.
func PruneControls(rawHTML string) string {
	sel, err := cascadia.Parse(controlSelector)
	if err != nil {
		return rawHTML
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	for _, node := range cascadia.QueryAll(doc, sel) {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return rawHTML
	}
	return buf.String()
}

// ApplyCSSSelector matches elements against the given CSS selector and
// returns the concatenated outer HTML of all matches. With no matches the
// original markup is returned unchanged.
func ApplyCSSSelector(rawHTML string, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

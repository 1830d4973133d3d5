package googlescholar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Indices are the cells of the "Cited by" table on a profile page.
type Indices struct {
	Citations   int
	Citations5y int
	HIndex      int
	HIndex5y    int
	I10Index    int
	I10Index5y  int
}

const (
	statsTableID = "gsc_rsb_st"
	statsCell    = "gsc_rsb_std"
)

// ParseProfile reads the indices table from a profile page. The table holds
// three rows (citations, h-index, i10-index) of two cells (all, last five
// years).
func ParseProfile(page []byte) (*Indices, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing profile page: %w", err)
	}

	table := findByID(doc, statsTableID)
	if table == nil {
		return nil, fmt.Errorf("profile page has no %q table", statsTableID)
	}

	var cells []string
	walk(table, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" && hasClass(n, statsCell) {
			cells = append(cells, strings.TrimSpace(textContent(n)))
		}
	})
	if len(cells) < 6 {
		return nil, fmt.Errorf("profile table has %d cells, want 6", len(cells))
	}

	values := make([]int, 6)
	for i := range values {
		v, err := parseCount(cells[i])
		if err != nil {
			return nil, fmt.Errorf("profile table cell %d: %w", i, err)
		}
		values[i] = v
	}

	return &Indices{
		Citations:   values[0],
		Citations5y: values[1],
		HIndex:      values[2],
		HIndex5y:    values[3],
		I10Index:    values[4],
		I10Index5y:  values[5],
	}, nil
}

// parseCount accepts thousands separators; an empty cell counts as zero.
func parseCount(s string) (int, error) {
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func findByID(n *html.Node, id string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && attr(c, "id") == id {
			found = c
		}
	})
	return found
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrTableNotFound is returned when no heading matching the server label is
// followed by a table with a body.
var ErrTableNotFound = errors.New("server table not found")

// ParseOnline extracts the names of online guild members from the homepage.
func ParseOnline(body []byte, serverLabel, guild string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	table, err := FindServerTable(doc, serverLabel)
	if err != nil {
		return nil, err
	}
	return GuildMembers(table, guild), nil
}

// FindServerTable returns the first table following an h3-h6 heading whose
// text contains label (case-insensitive). A candidate table without a tbody
// is skipped and the search continues with the next heading.
func FindServerTable(doc *goquery.Document, label string) (*goquery.Selection, error) {
	needle := strings.ToLower(strings.TrimSpace(label))
	// Matches come back in document order, so "next table" is the next table
	// entry after the heading in this list.
	nodes := doc.Find("h3, h4, h5, h6, table")
	for i := 0; i < nodes.Length(); i++ {
		node := nodes.Eq(i)
		if goquery.NodeName(node) == "table" {
			continue
		}
		heading := strippedText(node)
		if heading == "" || !strings.Contains(strings.ToLower(heading), needle) {
			continue
		}
		table := nextTable(nodes, i+1)
		if table != nil && table.Find("tbody").Length() > 0 {
			return table, nil
		}
	}
	return nil, ErrTableNotFound
}

func nextTable(nodes *goquery.Selection, from int) *goquery.Selection {
	for j := from; j < nodes.Length(); j++ {
		if candidate := nodes.Eq(j); goquery.NodeName(candidate) == "table" {
			return candidate
		}
	}
	return nil
}

// GuildMembers lists the player names of rows whose guild column contains
// guild (case-insensitive), in row order.
func GuildMembers(table *goquery.Selection, guild string) []string {
	needle := strings.ToLower(strings.TrimSpace(guild))
	var names []string
	table.Find("tbody").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := strippedText(cells.Eq(0))
		if name == "" {
			return
		}
		rowGuild := strippedText(cells.Eq(1))
		if rowGuild != "" && strings.Contains(strings.ToLower(rowGuild), needle) {
			names = append(names, name)
		}
	})
	return names
}

// strippedText concatenates the trimmed text nodes below the selection.
// Whitespace between inline elements is dropped, so "<b>Foo</b> Bar" reads
// as "FooBar".
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

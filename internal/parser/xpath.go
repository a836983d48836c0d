package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var contentIDKeywords = []string{"content", "article", "detail", "post", "main"}

// IDPattern matches containers whose id contains any keyword,
// case-insensitively. It runs as an XPath query over the parsed tree.
func IDPattern(keywords ...string) Strategy {
	expr := idPatternXPath(keywords)
	return Strategy{
		Name: "id-pattern",
		Find: func(doc *goquery.Document) []*html.Node {
			nodes, err := QueryAll(doc, expr)
			if err != nil {
				return nil
			}
			return nodes
		},
	}
}

func idPatternXPath(keywords []string) string {
	const lowerID = "translate(@id,'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz')"

	conds := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		conds = append(conds, fmt.Sprintf("contains(%s,'%s')", lowerID, strings.ToLower(kw)))
	}
	return fmt.Sprintf(
		"//*[self::div or self::section or self::article or self::main][@id and (%s)]",
		strings.Join(conds, " or "),
	)
}

// QueryAll runs an XPath expression against a goquery document.
func QueryAll(doc *goquery.Document, expr string) ([]*html.Node, error) {
	if len(doc.Nodes) == 0 {
		return nil, nil
	}
	return htmlquery.QueryAll(doc.Nodes[0], expr)
}

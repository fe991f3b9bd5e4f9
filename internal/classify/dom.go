// dom.go — DOM scans: visible text, failure banners, script discovery.
package classify

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dev-console/pagediag/internal/types"
	"github.com/dev-console/pagediag/internal/util"
)

// hiddenElements never contribute rendered text.
const hiddenElements = "script, style, noscript, template"

func parseDocument(page string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("dom_parse_failed: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// VisibleText returns the page's rendered text with script, style and
// template content removed and whitespace collapsed.
func VisibleText(page string) (string, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return "", err
	}
	return visibleText(doc.Selection), nil
}

func visibleText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find(hiddenElements).Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// DiscoverScripts returns the absolute URLs of every <script src> in page,
// resolved against baseURL, in document order without duplicates.
func DiscoverScripts(page, baseURL string) ([]string, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		abs := util.ResolveReference(baseURL, src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	})
	return out, nil
}

// ScanDOM looks for visible failure banners in a page snapshot: known failure
// phrases in the rendered text, and error-boundary elements holding text.
// At most one phrase finding is produced, plus one per distinct boundary element.
func (c *Classifier) ScanDOM(page string) ([]types.Finding, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	findings := make([]types.Finding, 0)

	text := visibleText(doc.Selection)
	if id, ex, ok := c.MatchBanner(text); ok {
		findings = append(findings, types.Finding{
			Origin:    types.OriginDOM,
			Verdict:   types.VerdictVisibleFailureBanner,
			PatternID: id,
			Text:      ex,
			Excerpt:   ex,
		})
	}

	seen := make(map[*html.Node]bool)
	for _, selector := range c.table.BoundarySelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true
			boundaryText := visibleText(s)
			if boundaryText == "" {
				return
			}
			findings = append(findings, types.Finding{
				Origin:    types.OriginDOM,
				Verdict:   types.VerdictVisibleFailureBanner,
				PatternID: "boundary:" + selector,
				Text:      truncate(boundaryText, maxExcerpt),
				Excerpt:   truncate(boundaryText, maxExcerpt),
			})
		})
	}
	return findings, nil
}

// classifier.go — Two-group, precedence-ordered error classifier.
// Separates defensive code that merely names an error kind (handling
// references) from text showing an error kind actually surfaced (genuine
// errors).
//
// PRECEDENCE:
//  1. Uncaught marker present → GenuineError (never defensive code)
//  2. Any handling-reference match → HandledErrorReference
//  3. Any genuine-error match → GenuineError
//  4. Otherwise → no verdict
//
// Every input receives at most one verdict, so a text is never both handled
// and genuine.
package classify

import (
	"strings"

	"github.com/dev-console/pagediag/internal/types"
)

// maxExcerpt bounds the excerpt carried on results and findings.
const maxExcerpt = 200

// excerptContext is how many bytes around a match are kept in an excerpt.
const excerptContext = 60

// Result is the outcome of classifying one text.
type Result struct {
	Verdict   types.Verdict
	PatternID string
	Excerpt   string

	HandlingMatches int
	GenuineMatches  int
	Uncaught        bool
}

// Classifier applies a compiled Table. It holds no mutable state and is safe
// for concurrent use by independent sessions.
type Classifier struct {
	table *Table
}

// New returns a classifier over table. A nil table selects the embedded default.
func New(table *Table) *Classifier {
	if table == nil {
		table = MustDefaultTable()
	}
	return &Classifier{table: table}
}

// Table returns the compiled table in use.
func (c *Classifier) Table() *Table {
	return c.table
}

// Classify assigns a single verdict to text.
func (c *Classifier) Classify(text string) Result {
	var res Result
	if text == "" {
		return res
	}

	var firstHandling, firstGenuine *matchAt
	for i := range c.table.Handling {
		p := &c.table.Handling[i]
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		res.HandlingMatches += len(locs)
		if firstHandling == nil {
			firstHandling = &matchAt{id: p.ID, loc: locs[0]}
		}
	}
	for i := range c.table.Genuine {
		p := &c.table.Genuine[i]
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		res.GenuineMatches += len(locs)
		if firstGenuine == nil {
			firstGenuine = &matchAt{id: p.ID, loc: locs[0]}
		}
	}

	var uncaught *matchAt
	if c.table.Uncaught != nil {
		if loc := c.table.Uncaught.re.FindStringIndex(text); loc != nil {
			uncaught = &matchAt{id: c.table.Uncaught.ID, loc: loc}
			res.Uncaught = true
		}
	}

	var chosen *matchAt
	switch {
	case uncaught != nil:
		res.Verdict = types.VerdictGenuineError
		chosen = uncaught
		if firstGenuine != nil {
			chosen = firstGenuine
		}
	case firstHandling != nil:
		res.Verdict = types.VerdictHandledErrorReference
		chosen = firstHandling
	case firstGenuine != nil:
		res.Verdict = types.VerdictGenuineError
		chosen = firstGenuine
	default:
		return res
	}
	res.PatternID = chosen.id
	res.Excerpt = excerpt(text, chosen.loc)
	return res
}

// DetectVisibleFailureBanner reports whether rendered page text contains a
// known failure phrase. It is independent of script-level classification: a
// banner may be rendered from client-side state with no error text anywhere.
func (c *Classifier) DetectVisibleFailureBanner(domText string) bool {
	_, _, ok := c.MatchBanner(domText)
	return ok
}

// MatchBanner returns the first banner pattern found in domText.
func (c *Classifier) MatchBanner(domText string) (patternID, excerptText string, ok bool) {
	if domText == "" {
		return "", "", false
	}
	for i := range c.table.Banners {
		p := &c.table.Banners[i]
		if loc := p.re.FindStringIndex(domText); loc != nil {
			return p.ID, excerpt(domText, loc), true
		}
	}
	return "", "", false
}

type matchAt struct {
	id  string
	loc []int
}

// excerpt returns the match with surrounding context, whitespace collapsed.
// Both context edges fall on rune boundaries.
func excerpt(text string, loc []int) string {
	start := loc[0] - excerptContext
	if start < 0 {
		start = 0
	}
	for start < loc[0] && !isRuneStart(text[start]) {
		start++
	}
	end := loc[1] + excerptContext
	if end > len(text) {
		end = len(text)
	}
	for end > loc[1] && end < len(text) && !isRuneStart(text[end]) {
		end--
	}
	s := strings.Join(strings.Fields(text[start:end]), " ")
	return truncate(s, maxExcerpt)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

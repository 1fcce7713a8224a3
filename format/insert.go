package format

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoInsertionPoint is returned when a homepage has neither a closing
// section followed by a closing main nor a closing body.
var ErrNoInsertionPoint = errors.New("homepage has no </section></main> or </body> to insert a card before")

// Placement says where InsertCard put the card.
type Placement string

const (
	PlacedBeforeSectionMain Placement = "section-main"
	PlacedBeforeBody        Placement = "body"
)

type token struct {
	typ   html.TokenType
	name  string
	start int
	blank bool
}

// InsertCard splices card into doc immediately before the first </section>
// that is directly followed by </main> (whitespace and comments between them
// are allowed), falling back to the first </body>. The document is scanned
// with the HTML tokenizer, so tags inside comments, scripts or attribute
// values never match. Every byte outside the insertion point is preserved.
func InsertCard(doc, card string) (string, Placement, error) {
	tokens := scan(doc)

	offset, placement := -1, Placement("")
	for i, t := range tokens {
		if t.typ != html.EndTagToken || t.name != "section" {
			continue
		}
		if next := nextSignificant(tokens, i+1); next >= 0 &&
			tokens[next].typ == html.EndTagToken && tokens[next].name == "main" {
			offset, placement = t.start, PlacedBeforeSectionMain
			break
		}
	}
	if offset < 0 {
		for _, t := range tokens {
			if t.typ == html.EndTagToken && t.name == "body" {
				offset, placement = t.start, PlacedBeforeBody
				break
			}
		}
	}
	if offset < 0 {
		return doc, "", ErrNoInsertionPoint
	}

	var b strings.Builder
	b.Grow(len(doc) + len(card) + 1)
	b.WriteString(doc[:offset])
	b.WriteString(card)
	b.WriteByte('\n')
	b.WriteString(doc[offset:])
	return b.String(), placement, nil
}

func scan(doc string) []token {
	z := html.NewTokenizer(strings.NewReader(doc))
	var tokens []token
	pos := 0
	for {
		tt := z.Next()
		// Reading from memory the tokenizer only stops at io.EOF.
		if tt == html.ErrorToken {
			return tokens
		}
		raw := z.Raw()
		t := token{typ: tt, start: pos}
		switch tt {
		case html.EndTagToken, html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			t.name = string(name)
		case html.TextToken:
			t.blank = strings.TrimSpace(string(raw)) == ""
		}
		pos += len(raw)
		tokens = append(tokens, t)
	}
}

// nextSignificant returns the index of the first token at or after i that is
// neither a comment nor whitespace-only text, or -1.
func nextSignificant(tokens []token, i int) int {
	for ; i < len(tokens); i++ {
		t := tokens[i]
		if t.typ == html.CommentToken || (t.typ == html.TextToken && t.blank) {
			continue
		}
		return i
	}
	return -1
}

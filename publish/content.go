package publish

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"github.com/eringen/pagespub/format"
)

// ContentProvider supplies the body of a post. HTML is what gets published;
// PlainText feeds the plain-text preview.
type ContentProvider interface {
	HTML() string
	PlainText() string
}

// HTMLContent is rich-text editor output.
type HTMLContent string

func (c HTMLContent) HTML() string { return string(c) }

// PlainText returns the text of the markup with one line per block element,
// roughly what a browser reports as innerText.
func (c HTMLContent) PlainText() string {
	return textOf(string(c))
}

// PlainTextContent is unformatted text converted with format.PlainTextToHTML.
type PlainTextContent string

func (c PlainTextContent) HTML() string      { return format.PlainTextToHTML(string(c)) }
func (c PlainTextContent) PlainText() string { return string(c) }

// MarkdownContent is rendered with goldmark (GFM, raw HTML omitted).
type MarkdownContent string

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (c MarkdownContent) HTML() string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(c), &buf); err != nil {
		return format.PlainTextToHTML(string(c))
	}
	return buf.String()
}

func (c MarkdownContent) PlainText() string { return string(c) }

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "figure": true, "section": true, "article": true,
}

func textOf(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "script" || tag == "style":
				skip++
			case tag == "br":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skip > 0 {
					skip--
				}
				continue
			}
			if blockElements[tag] {
				newline()
			}
		}
	}
}

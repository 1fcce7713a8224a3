// Package format turns operator input into the HTML fragments a published
// post is made of: post bodies from plain text, the filled post template,
// homepage cards and inline figures. Every function is pure.
//
// Text supplied by the operator (titles, authors, categories, body lines) is
// always escaped. Attribute values that carry paths (href, src) are emitted
// as is: they are built by the publish pipeline from sanitized file names and
// computed post paths, never from free text, and escaping them would break
// legitimate path characters.
package format

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reHeading2 = regexp.MustCompile(`^#\s+`)
	reHeading3 = regexp.MustCompile(`^##\s+`)
	reRule     = regexp.MustCompile(`^---+$`)
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes & < > " and ' for use in text and quoted attributes.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// PlainTextToHTML converts plain text line by line: "# " lines become h2,
// "## " lines h3, "---" lines a horizontal rule, blank lines stay blank and
// everything else becomes a paragraph. Runs of three or more blank lines
// collapse to one. This is not a Markdown parser.
func PlainTextToHTML(src string) string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, raw := range lines {
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		switch {
		case strings.TrimSpace(line) == "":
			out = append(out, "")
		case reHeading2.MatchString(line):
			out = append(out, "<h2>"+EscapeHTML(reHeading2.ReplaceAllString(line, ""))+"</h2>")
		case reHeading3.MatchString(line):
			out = append(out, "<h3>"+EscapeHTML(reHeading3.ReplaceAllString(line, ""))+"</h3>")
		case reRule.MatchString(line):
			out = append(out, "<hr/>")
		default:
			out = append(out, "<p>"+EscapeHTML(line)+"</p>")
		}
	}
	return strings.Join(collapseBlankRuns(out), "\n")
}

// collapseBlankRuns replaces every run of three or more empty lines with a
// single empty line. Shorter runs are kept.
func collapseBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))
	run := 0
	flush := func() {
		switch {
		case run >= 3:
			out = append(out, "")
		case run > 0:
			for i := 0; i < run; i++ {
				out = append(out, "")
			}
		}
		run = 0
	}
	for _, l := range lines {
		if l == "" {
			run++
			continue
		}
		flush()
		out = append(out, l)
	}
	flush()
	return out
}

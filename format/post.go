package format

import (
	_ "embed"
	"strings"
)

// Post template placeholders.
const (
	PlaceholderTitle    = "{{TITLE}}"
	PlaceholderAuthor   = "{{AUTHOR}}"
	PlaceholderDate     = "{{DATE}}"
	PlaceholderCategory = "{{CATEGORY}}"
	PlaceholderContent  = "{{CONTENT}}"
)

// EmptyCategory stands in for a missing category in the post page.
const EmptyCategory = "—"

// DefaultPostTemplate is used when no template is configured.
//
//go:embed templates/post.html
var DefaultPostTemplate string

// PostFields are the values substituted into a post template.
type PostFields struct {
	Title       string
	Author      string
	Date        string
	Category    string
	ContentHTML string
}

// BuildPostHTML fills tpl. TITLE, AUTHOR, DATE and CATEGORY are replaced
// everywhere with escaped values. CONTENT is replaced once, at its first
// occurrence in tpl, with the body HTML as is. Substituted values are never
// scanned for placeholders, so a body that contains "{{CONTENT}}" or a
// title that contains "{{DATE}}" comes through literally.
func BuildPostHTML(f PostFields, tpl string) string {
	category := f.Category
	if category == "" {
		category = EmptyCategory
	}
	meta := strings.NewReplacer(
		PlaceholderTitle, EscapeHTML(f.Title),
		PlaceholderAuthor, EscapeHTML(f.Author),
		PlaceholderDate, EscapeHTML(f.Date),
		PlaceholderCategory, EscapeHTML(category),
	)

	head, tail, found := strings.Cut(tpl, PlaceholderContent)
	if !found {
		return meta.Replace(tpl)
	}
	var b strings.Builder
	b.Grow(len(tpl) + len(f.ContentHTML))
	b.WriteString(meta.Replace(head))
	b.WriteString(f.ContentHTML)
	b.WriteString(meta.Replace(tail))
	return b.String()
}

package format

import (
	"fmt"
	"strings"
	"unicode"
)

// CardFields describe one homepage card. Href and ThumbPath are computed
// paths and are not escaped.
type CardFields struct {
	Href      string
	Title     string
	Category  string
	ThumbPath string
}

// Inline figures default to this size when the image cannot be decoded.
const (
	DefaultFigureWidth  = 1280
	DefaultFigureHeight = 853
)

const cardTemplate = `
  <a class="card" href="%s" data-category="%s">
    <figure class="card-figure">
      <img src="%s" alt="%s" loading="lazy" width="600" height="360">
    </figure>
    <div class="card-body">
      <h3 class="card-title">%s</h3>
      <p class="card-meta">%s</p>
    </div>
  </a>`

const figureTemplate = `<figure>
      <img src="%s" alt="%s" loading="lazy" width="%d" height="%d">
      <figcaption></figcaption></figure>`

// BuildCardHTML renders the homepage card linking to a post.
func BuildCardHTML(f CardFields) string {
	title := EscapeHTML(f.Title)
	category := EscapeHTML(f.Category)
	return fmt.Sprintf(cardTemplate, f.Href, category, f.ThumbPath, title, title, category)
}

// FigureHTML renders an inline image figure. Non-positive sizes fall back to
// DefaultFigureWidth x DefaultFigureHeight.
func FigureHTML(src, alt string, width, height int) string {
	if width <= 0 || height <= 0 {
		width, height = DefaultFigureWidth, DefaultFigureHeight
	}
	return fmt.Sprintf(figureTemplate, src, EscapeHTML(alt), width, height)
}

// SanitizeFileName trims name, joins whitespace runs with a single hyphen
// and lowercases the result.
func SanitizeFileName(name string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "-"))
}

// StripExt drops the final ".ext" of name.
func StripExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name
	}
	return name[:i]
}

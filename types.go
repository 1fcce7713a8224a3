package pagespub

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eringen/pagespub/publish"
)

// publishForm carries the admin form fields. The content field holds the
// editor HTML; text is the plain-text fallback when the editor is empty.
type publishForm struct {
	Owner    string
	Repo     string
	Branch   string
	Title    string
	Author   string
	Date     string
	Category string
	HTML     string
	Text     string
}

// Validate checks the repository coordinates. Post metadata is validated by
// the pipeline.
func (f publishForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Owner, validation.Required),
		validation.Field(&f.Repo, validation.Required),
		validation.Field(&f.Branch, validation.Required),
	)
}

func (f publishForm) content() publish.ContentProvider {
	if strings.TrimSpace(f.HTML) == "" && strings.TrimSpace(f.Text) != "" {
		return publish.PlainTextContent(f.Text)
	}
	return publish.HTMLContent(f.HTML)
}

func (f publishForm) request() publish.Request {
	return publish.Request{
		Title:    f.Title,
		Author:   f.Author,
		Date:     f.Date,
		Category: f.Category,
		Content:  f.content(),
	}
}

// JournalEntry is a stored publish attempt with the repository it targeted.
type JournalEntry struct {
	publish.Entry
	Owner string
	Repo  string
}

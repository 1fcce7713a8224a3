package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

func layout(title string, body func(w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n",
			"<meta name=\"robots\" content=\"noindex, nofollow\">\n<title>")
		w.text(title)
		w.raw("</title>\n<link rel=\"stylesheet\" href=\"/admin/assets/admin.css\">\n</head>\n<body>\n<main class=\"admin\">\n")
		body(w)
		w.raw("</main>\n<script src=\"/admin/assets/admin.js\" defer></script>\n</body>\n</html>\n")
		return w.err
	})
}

// DashboardPage renders the token panel, the post form and the publish history.
func DashboardPage(d Dashboard) templ.Component {
	return layout("Publish a post", func(w *writer) {
		w.raw("<h1>Publish a post</h1>\n")
		if d.Message.Text != "" {
			w.raw("<p")
			w.attr("class", messageClass(d.Message))
			w.raw(` role="status" id="message">`)
			w.text(d.Message.Text)
			w.raw("</p>\n")
		}
		tokenPanel(w, d)
		postForm(w, d)
		history(w, d.History)
	})
}

func tokenPanel(w *writer, d Dashboard) {
	w.raw(`<section class="panel" id="token">` + "\n")
	if d.HasToken {
		w.raw(`<p>A GitHub token is stored for this browser session.</p>` + "\n")
		w.raw(`<form method="post" action="/admin/logout/">`)
		csrfField(w, d.CSRF)
		w.raw(`<button type="submit">Clear token</button></form>` + "\n")
	} else {
		w.raw(`<form method="post" action="/admin/token/">`)
		csrfField(w, d.CSRF)
		w.raw(`<label>GitHub token <input type="password" name="token" autocomplete="off" required></label>`)
		w.raw(`<button type="submit">Save token</button></form>` + "\n")
	}
	w.raw("</section>\n")
}

func postForm(w *writer, d Dashboard) {
	w.raw(`<form class="panel" id="post-form" method="post" action="/admin/publish/" enctype="multipart/form-data">` + "\n")
	csrfField(w, d.CSRF)
	w.raw("<fieldset><legend>Repository</legend>\n")
	input(w, "Owner", "owner", "text", d.Form.Owner)
	input(w, "Repository", "repo", "text", d.Form.Repo)
	input(w, "Branch", "branch", "text", d.Form.Branch)
	w.raw("</fieldset>\n<fieldset><legend>Post</legend>\n")
	input(w, "Title", "title", "text", "")
	input(w, "Author", "author", "text", d.Form.Author)
	input(w, "Date", "date", "date", "")
	input(w, "Category", "category", "text", d.Form.Category)
	w.raw(`<label>Content <textarea name="content_html" id="content-html" rows="16"></textarea></label>` + "\n")
	w.raw(`<label>Plain text <textarea name="content_text" id="content-text" rows="6"></textarea></label>` + "\n")
	w.raw(`<button type="button" id="format-button" data-action="/admin/format/">Format plain text</button>` + "\n")
	w.raw("</fieldset>\n<fieldset><legend>Media</legend>\n")
	w.raw(`<label>Thumbnail <input type="file" name="thumb" accept="image/*"></label>` + "\n")
	w.raw(`<label>Images <input type="file" name="images" accept="image/*" multiple></label>` + "\n")
	w.raw("</fieldset>\n")
	w.raw(`<div class="actions"><button type="button" id="preview-button" data-action="/admin/preview/">Preview</button>`)
	w.raw(`<button type="submit" id="publish-button">Publish</button></div>` + "\n")
	w.raw("</form>\n")
	w.raw(`<iframe id="preview" title="Preview" sandbox hidden></iframe>` + "\n")
}

func history(w *writer, items []HistoryItem) {
	w.raw(`<section class="panel" id="history"><h2>Recent publishes</h2>` + "\n")
	if len(items) == 0 {
		w.raw("<p>Nothing published yet.</p>\n</section>\n")
		return
	}
	w.raw("<table>\n<thead><tr><th>Started</th><th>Repository</th><th>Post</th><th>Status</th><th>Files</th></tr></thead>\n<tbody>\n")
	for _, it := range items {
		w.raw("<tr><td>")
		w.text(formatStarted(it.StartedAt))
		w.raw("</td><td>")
		w.text(it.Repository)
		w.raw("</td><td><a")
		w.attr("href", "/admin/history/"+it.ID+"/")
		w.attr("title", it.ID)
		w.raw(">")
		if it.PostPath != "" {
			w.text(it.PostPath)
		} else {
			w.text(shortID(it.ID))
		}
		w.raw("</a></td><td><span")
		w.attr("class", statusClass(it.Status))
		if it.Error != "" {
			w.attr("title", it.Error)
		}
		w.raw(">")
		w.text(it.Status)
		if it.FailedStep != "" {
			w.raw(" at ")
			w.text(it.FailedStep)
		}
		w.raw("</span></td><td>")
		w.raw(strconv.Itoa(it.Files))
		w.raw("</td></tr>\n")
	}
	w.raw("</tbody>\n</table>\n</section>\n")
}

func csrfField(w *writer, token string) {
	w.raw(`<input type="hidden" name="_csrf"`)
	w.attr("value", token)
	w.raw(">")
}

func input(w *writer, label, name, typ, value string) {
	w.raw("<label>")
	w.text(label)
	w.raw(" <input")
	w.attr("type", typ)
	w.attr("name", name)
	if value != "" {
		w.attr("value", value)
	}
	w.raw("></label>\n")
}

// NotFoundPage renders the 404 page.
func NotFoundPage() templ.Component {
	return layout("Not found", func(w *writer) {
		w.raw("<h1>Not found</h1>\n<p><a href=\"/admin/\">Back to the panel</a></p>\n")
	})
}

// ServerErrorPage renders the 500 page.
func ServerErrorPage() templ.Component {
	return layout("Something went wrong", func(w *writer) {
		w.raw("<h1>Something went wrong</h1>\n<p>The error has been logged. <a href=\"/admin/\">Back to the panel</a></p>\n")
	})
}

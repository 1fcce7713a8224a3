package views

import (
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// writer accumulates markup and remembers the first write error.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, p)
	}
}

// text writes s escaped for element content and attribute values.
func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

// attr writes ` name="value"` with value escaped.
func (w *writer) attr(name, value string) {
	w.raw(" ", name, `="`)
	w.text(value)
	w.raw(`"`)
}

func messageClass(m Message) string {
	if m.Error {
		return "msg msg-error"
	}
	return "msg msg-ok"
}

func statusClass(status string) string {
	if status == "ok" {
		return "status status-ok"
	}
	return "status status-failed"
}

func formatStarted(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

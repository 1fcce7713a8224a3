package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, d Dashboard) string {
	t.Helper()
	var buf bytes.Buffer
	if err := DashboardPage(d).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return buf.String()
}

func TestDashboardEscapesValues(t *testing.T) {
	got := render(t, Dashboard{
		CSRF:    `tok"en`,
		Form:    FormValues{Owner: `<script>`, Author: `A "B"`},
		Message: Message{Text: "❌ <b>bad</b>", Error: true},
	})
	for _, bad := range []string{"<script>", `value="A "B""`, "<b>bad</b>", `value="tok"en"`} {
		if strings.Contains(got, bad) {
			t.Errorf("unescaped %q in output", bad)
		}
	}
	if !strings.Contains(got, `class="msg msg-error"`) {
		t.Error("error message class missing")
	}
}

func TestDashboardTokenPanel(t *testing.T) {
	tests := []struct {
		hasToken bool
		want     string
	}{
		{false, `action="/admin/token/"`},
		{true, `action="/admin/logout/"`},
	}
	for _, tt := range tests {
		got := render(t, Dashboard{HasToken: tt.hasToken})
		if !strings.Contains(got, tt.want) {
			t.Errorf("HasToken=%v: missing %s", tt.hasToken, tt.want)
		}
	}
}

func TestDashboardHistory(t *testing.T) {
	got := render(t, Dashboard{})
	if !strings.Contains(got, "Nothing published yet.") {
		t.Error("empty history message missing")
	}

	got = render(t, Dashboard{History: []HistoryItem{
		{ID: "1b2c-aa", Repository: "o/r@main", Status: "failed", FailedStep: "patch homepage", Error: "conflict", Files: 2, StartedAt: time.Now()},
		{ID: "9f00-bb", Repository: "o/r@main", PostPath: "posts/post3.html", Status: "ok", Files: 3},
	}})
	for _, want := range []string{
		`href="/admin/history/1b2c-aa/"`,
		">1b2c</a>",
		"failed at patch homepage",
		`title="conflict"`,
		">posts/post3.html</a>",
		`class="status status-ok"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("history missing %s", want)
		}
	}
}

func TestErrorPages(t *testing.T) {
	var buf bytes.Buffer
	if err := NotFoundPage().Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<h1>Not found</h1>") {
		t.Errorf("NotFoundPage = %q", buf.String())
	}
}

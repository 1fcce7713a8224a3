package publish

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eringen/pagespub/contents"
	"github.com/eringen/pagespub/format"
	"github.com/eringen/pagespub/internal/githubtest"
)

const homepage = `<!doctype html>
<html><body>
<main>
<section class="grid">
  <a class="card" href="posts/post1.html">one</a>
</section>
</main>
</body></html>`

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *githubtest.Server) {
	t.Helper()
	srv := githubtest.New("tok")
	t.Cleanup(srv.Close)
	client := contents.New("octo", "site", contents.NewSession("tok"), contents.WithBaseURL(srv.URL))
	clock := func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithClock(clock), WithTemplate("<h1>{{TITLE}}</h1>{{DATE}}|{{CATEGORY}}|{{AUTHOR}}<main>{{CONTENT}}</main>")}, opts...)
	return New(client, opts...), srv
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type listStore struct {
	Store
	entries []contents.Entry
	err     error
}

func (s listStore) ListDirectory(context.Context, string, string) ([]contents.Entry, error) {
	return s.entries, s.err
}

func TestNextPostNumber(t *testing.T) {
	tests := []struct {
		name    string
		entries []contents.Entry
		err     error
		want    int
	}{
		{"absent directory", nil, &contents.APIError{Status: 404, Kind: contents.ErrNotFound}, 1},
		{"empty directory", []contents.Entry{}, nil, 1},
		{"gaps", []contents.Entry{
			{Name: "post1.html", Type: "file"},
			{Name: "post7.html", Type: "file"},
			{Name: "post3.html", Type: "file"},
		}, nil, 8},
		{"ignores others", []contents.Entry{
			{Name: "post2.html", Type: "file"},
			{Name: "post9.html", Type: "dir"},
			{Name: "post10.htm", Type: "file"},
			{Name: "draft12.html", Type: "file"},
			{Name: "POST4.HTML", Type: "file"},
		}, nil, 5},
	}
	for _, tt := range tests {
		p := New(listStore{entries: tt.entries, err: tt.err})
		got, err := p.NextPostNumber(context.Background())
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestNextPostNumberPropagatesOtherErrors(t *testing.T) {
	p := New(listStore{err: contents.ErrUnauthorized})
	if _, err := p.NextPostNumber(context.Background()); !errors.Is(err, contents.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

// Scenario A: posts/post3.html exists, so the new post is number 4.
func TestPublishNextAfterExisting(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Put("posts/post3.html", []byte("old"))
	srv.Put("index.html", []byte(homepage))

	res, err := p.Publish(context.Background(), Request{
		Title:     "Hello",
		Content:   HTMLContent("<p>hi</p>"),
		Thumbnail: &Asset{Name: "My Thumb.PNG", Data: pngBytes(t, 8, 8)},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.Number != 4 || res.PostPath != "posts/post4.html" || res.ThumbPath != "media/post4/my-thumb.png" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := srv.File("posts/post4.html"); !ok {
		t.Error("post4.html not written")
	}
	if _, ok := srv.File("media/post4/my-thumb.png"); !ok {
		t.Error("thumbnail not written")
	}
	want := []string{"media/post4/my-thumb.png", "posts/post4.html", "index.html"}
	if strings.Join(res.Files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", res.Files, want)
	}
}

// Scenario B: a fresh repository without posts/ gets post1.
func TestPublishFreshRepository(t *testing.T) {
	p, srv := newTestPipeline(t)

	res, err := p.Publish(context.Background(), Request{Title: "First", Content: PlainTextContent("hello")})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.PostPath != "posts/post1.html" {
		t.Fatalf("PostPath = %q", res.PostPath)
	}
	page, _ := srv.File("posts/post1.html")
	if string(page) != "<h1>First</h1>2024-03-09|—|—<main><p>hello</p></main>" {
		t.Errorf("page = %q", page)
	}
}

// Scenario C: the card goes right before </section></main>.
func TestPublishPatchesSectionMain(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Put("index.html", []byte(homepage))
	srv.Put("posts/post1.html", []byte("one"))

	res, err := p.Publish(context.Background(), Request{
		Title:     "Two",
		Category:  "news",
		Content:   HTMLContent("<p>2</p>"),
		Thumbnail: &Asset{Name: "t.png", Data: []byte("not really a png")},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !res.CardInserted || res.Placement != format.PlacedBeforeSectionMain {
		t.Fatalf("card not inserted before section/main: %+v", res)
	}
	home, _ := srv.File("index.html")
	doc := string(home)
	if n := strings.Count(doc, `class="card"`); n != 2 {
		t.Errorf("card count = %d, want 2", n)
	}
	if !strings.Contains(doc, `<a class="card" href="posts/post1.html">one</a>`) {
		t.Error("existing card changed")
	}
	i := strings.Index(doc, `href="posts/post2.html"`)
	j := strings.Index(doc, "</section>\n</main>")
	if i < 0 || j < 0 || i > j {
		t.Errorf("new card not before </section></main>:\n%s", doc)
	}
	if !strings.Contains(doc, `data-category="news"`) || !strings.Contains(doc, `src="media/post2/t.png"`) {
		t.Errorf("card fields missing:\n%s", doc)
	}
	writes := srv.Writes()
	last := writes[len(writes)-1]
	if last.Path != "index.html" || last.SHA == "" || last.Message != "Add new post card" {
		t.Errorf("homepage write = %+v", last)
	}
}

// Scenario D: no section/main marker, fall back to </body>.
func TestPublishPatchesBodyFallback(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Put("index.html", []byte("<html><body><div class=\"grid\"></div></body></html>"))

	res, err := p.Publish(context.Background(), Request{
		Title:     "x",
		Content:   HTMLContent("x"),
		Thumbnail: &Asset{Name: "t.png", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.Placement != format.PlacedBeforeBody {
		t.Errorf("placement = %q", res.Placement)
	}
	home, _ := srv.File("index.html")
	if !strings.HasSuffix(string(home), "</a>\n</body></html>") {
		t.Errorf("card not before </body>: %q", home)
	}
}

// Scenario E: no thumbnail, no homepage patch.
func TestPublishWithoutThumbnailSkipsHomepage(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Put("index.html", []byte(homepage))

	res, err := p.Publish(context.Background(), Request{
		Title:   "Gallery",
		Content: HTMLContent("<p>pics</p>"),
		Images: []Asset{
			{Name: "B pic.png", Data: pngBytes(t, 40, 20)},
			{Name: "a.gif", Data: []byte("GIF89a-bogus")},
		},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.CardInserted {
		t.Error("card inserted without a thumbnail")
	}
	home, _ := srv.File("index.html")
	if string(home) != homepage {
		t.Error("homepage modified")
	}
	for _, w := range srv.Writes() {
		if w.Path == "index.html" {
			t.Error("homepage written")
		}
	}

	writes := srv.Writes()
	if len(writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(writes))
	}
	if writes[0].Path != "media/post1/b-pic.png" || writes[0].Message != "Add image b-pic.png for post1" {
		t.Errorf("first write = %+v", writes[0])
	}
	if writes[1].Path != "media/post1/a.gif" {
		t.Errorf("second write = %+v", writes[1])
	}
	if writes[2].Path != "posts/post1.html" || writes[2].Message != "Create post1.html" || writes[2].Branch != "main" {
		t.Errorf("post write = %+v", writes[2])
	}

	page := string(writes[2].Content)
	first := strings.Index(page, `<img src="../media/post1/b-pic.png" alt="b-pic" loading="lazy" width="40" height="20">`)
	second := strings.Index(page, `<img src="../media/post1/a.gif" alt="a" loading="lazy" width="1280" height="853">`)
	if first < 0 || second < 0 || first > second {
		t.Errorf("figures missing or out of order:\n%s", page)
	}
	if !strings.Contains(page, "<main><p>pics</p>\n<figure>") {
		t.Errorf("figures not appended after content:\n%s", page)
	}
}

// Scenario F: a stale precondition on the homepage aborts without retry.
func TestPublishConflictAborts(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Put("index.html", []byte(homepage))
	srv.Fail(githubtest.Failure{Method: http.MethodPut, Path: "index.html", Status: http.StatusConflict, Message: "index.html does not match abc"})

	res, err := p.Publish(context.Background(), Request{
		Title:     "x",
		Content:   HTMLContent("x"),
		Thumbnail: &Asset{Name: "t.png", Data: []byte("x")},
	})
	if !errors.Is(err, contents.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepHomepage {
		t.Fatalf("err = %#v, want StepError at %q", err, StepHomepage)
	}
	if !strings.Contains(err.Error(), "does not match") {
		t.Errorf("error message lost: %v", err)
	}
	// list, thumbnail, post, read index, write index
	if n := srv.Requests(); n != 5 {
		t.Errorf("requests = %d, want 5 (no retry)", n)
	}
	if len(res.Files) != 2 {
		t.Errorf("files = %v, want thumbnail and post left in place", res.Files)
	}
}

func TestPublishStopsAtFirstFailure(t *testing.T) {
	p, srv := newTestPipeline(t)
	srv.Fail(githubtest.Failure{Method: http.MethodPut, Path: "media/post1/b.png", Status: http.StatusInternalServerError, Message: "boom"})

	_, err := p.Publish(context.Background(), Request{
		Content: HTMLContent("x"),
		Images:  []Asset{{Name: "a.png", Data: []byte("a")}, {Name: "b.png", Data: []byte("b")}, {Name: "c.png", Data: []byte("c")}},
	})
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepImage || se.Path != "media/post1/b.png" {
		t.Fatalf("err = %v", err)
	}
	paths := srv.Paths()
	if len(paths) != 1 || paths[0] != "media/post1/a.png" {
		t.Errorf("paths = %v, want only the first image", paths)
	}
}

func TestPublishMissingCredential(t *testing.T) {
	srv := githubtest.New("tok")
	defer srv.Close()
	p := New(contents.New("o", "r", nil, contents.WithBaseURL(srv.URL)))

	_, err := p.Publish(context.Background(), Request{Content: HTMLContent("x")})
	if !errors.Is(err, contents.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestPublishValidation(t *testing.T) {
	p, srv := newTestPipeline(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"no content", Request{Title: "x"}},
		{"bad date", Request{Content: HTMLContent("x"), Date: "09/03/2024"}},
		{"blank thumbnail name", Request{Content: HTMLContent("x"), Thumbnail: &Asset{Name: "   "}}},
		{"blank image name", Request{Content: HTMLContent("x"), Images: []Asset{{Name: ""}}}},
	}
	for _, tt := range tests {
		_, err := p.Publish(context.Background(), tt.req)
		var se *StepError
		if !errors.As(err, &se) || se.Step != StepValidate {
			t.Errorf("%s: err = %v, want validation StepError", tt.name, err)
		}
	}
	if n := srv.Requests(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestPublishEscapesMetadata(t *testing.T) {
	p, srv := newTestPipeline(t)
	_, err := p.Publish(context.Background(), Request{
		Title:    "<script>",
		Author:   "A & B",
		Category: `"c"`,
		Content:  HTMLContent("<em>ok</em>"),
	})
	if err != nil {
		t.Fatal(err)
	}
	page, _ := srv.File("posts/post1.html")
	want := "<h1>&lt;script&gt;</h1>2024-03-09|&quot;c&quot;|A &amp; B<main><em>ok</em></main>"
	if string(page) != want {
		t.Errorf("page = %q, want %q", page, want)
	}
}

func TestPublishReportsProgress(t *testing.T) {
	var steps []Step
	p, srv := newTestPipeline(t, WithProgress(func(pr Progress) { steps = append(steps, pr.Step) }))
	srv.Put("index.html", []byte(homepage))

	_, err := p.Publish(context.Background(), Request{
		Content:   HTMLContent("x"),
		Thumbnail: &Asset{Name: "t.png", Data: []byte("t")},
		Images:    []Asset{{Name: "i.png", Data: []byte("i")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Step{StepNumber, StepThumbnail, StepImage, StepPost, StepHomepage}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("steps[%d] = %q, want %q", i, steps[i], want[i])
		}
	}
}

type memJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func (j *memJournal) Record(_ context.Context, e Entry) error {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
	return nil
}

func TestPublishRecordsJournal(t *testing.T) {
	j := &memJournal{}
	p, srv := newTestPipeline(t, WithJournal(j), WithBranch("gh-pages"))
	srv.Fail(githubtest.Failure{Method: http.MethodPut, Path: "posts/post1.html", Status: http.StatusUnauthorized, Message: "Bad credentials"})

	if _, err := p.Publish(context.Background(), Request{Content: HTMLContent("x"), Images: []Asset{{Name: "a.png", Data: []byte("a")}}}); err == nil {
		t.Fatal("expected failure")
	}
	if len(j.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(j.entries))
	}
	e := j.entries[0]
	if e.Status != StatusFailed || e.FailedStep != StepPost || e.Branch != "gh-pages" || e.Number != 1 {
		t.Errorf("entry = %+v", e)
	}
	if len(e.Files) != 1 || e.Files[0] != "media/post1/a.png" {
		t.Errorf("files = %v", e.Files)
	}
	if e.ID == "" {
		t.Error("entry has no id")
	}

	writes := srv.Writes()
	if writes[0].Branch != "gh-pages" {
		t.Errorf("branch = %q", writes[0].Branch)
	}
}

func TestPublishResizesWideThumbnail(t *testing.T) {
	p, srv := newTestPipeline(t, WithThumbnailMaxWidth(50))
	srv.Put("index.html", []byte(homepage))

	_, err := p.Publish(context.Background(), Request{
		Content:   HTMLContent("x"),
		Thumbnail: &Asset{Name: "wide.png", Data: pngBytes(t, 200, 100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := srv.File("media/post1/wide.png")
	w, h, ok := imageSize(data)
	if !ok || w != 50 || h != 25 {
		t.Errorf("thumbnail size = %dx%d (ok=%v), want 50x25", w, h, ok)
	}
}

func TestPreviewUsesPlainText(t *testing.T) {
	p := New(nil, WithTemplate("{{TITLE}}:{{CONTENT}}"))
	got := p.Preview(Request{Content: HTMLContent("<h2>Head</h2><p>a &amp; b</p>")})
	if got != "untitled:<p>Head</p>\n<p>a &amp; b</p>" {
		t.Errorf("Preview = %q", got)
	}
}

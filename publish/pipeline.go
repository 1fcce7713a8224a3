// Package publish writes a post to a pages repository: it picks the next
// post number, uploads the thumbnail and inline images, uploads the post page
// and links it from the homepage.
//
// A publish is a strict sequence of single-file writes. The first failure
// stops the sequence and is returned as a *StepError; files written before
// the failure stay in the repository. Nothing is retried.
package publish

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/eringen/pagespub/contents"
	"github.com/eringen/pagespub/format"
)

// Repository layout.
const (
	PostsDir     = "posts"
	HomePagePath = "index.html"
	DateLayout   = "2006-01-02"
)

// Request defaults, matching what the admin form falls back to.
const (
	DefaultTitle  = "untitled"
	DefaultAuthor = "—"
)

var rePostFile = regexp.MustCompile(`(?i)^post(\d+)\.html$`)

// ErrNoContent is returned when a Request carries no ContentProvider.
var ErrNoContent = errors.New("post content is required")

// Store is the part of the repository client the pipeline needs.
// *contents.Client satisfies it.
type Store interface {
	ReadFile(ctx context.Context, path, ref string) (contents.File, error)
	WriteFile(ctx context.Context, req contents.WriteRequest) (string, error)
	ListDirectory(ctx context.Context, path, ref string) ([]contents.Entry, error)
}

// Logger is satisfied by echo.Logger and *github.com/labstack/gommon/log.Logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Step names one stage of a publish.
type Step string

const (
	StepValidate  Step = "validate request"
	StepNumber    Step = "determine post number"
	StepThumbnail Step = "upload thumbnail"
	StepImage     Step = "upload image"
	StepPost      Step = "upload post"
	StepHomepage  Step = "patch homepage"
)

// StepError reports the step, and the file if any, a publish stopped at.
type StepError struct {
	Step Step
	Path string
	Err  error
}

func (e *StepError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Step, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Progress is delivered to the WithProgress callback when a step starts.
type Progress struct {
	Step   Step
	Number int
	Path   string
}

// Request is one post as filled in by the operator.
type Request struct {
	Title     string
	Author    string
	Date      string
	Category  string
	Content   ContentProvider
	Thumbnail *Asset
	Images    []Asset
}

// Validate checks the request after defaults have been applied.
func (r Request) Validate() error {
	if r.Content == nil {
		return ErrNoContent
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Date, validation.Required, validation.Date(DateLayout)),
		validation.Field(&r.Thumbnail),
		validation.Field(&r.Images),
	)
}

// Validate requires a name that survives sanitizing.
func (a Asset) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.By(func(any) error {
			if format.SanitizeFileName(a.Name) == "" {
				return errors.New("file name is empty")
			}
			return nil
		})),
	)
}

func (r Request) withDefaults(now time.Time) Request {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	r.Author = strings.TrimSpace(r.Author)
	if r.Author == "" {
		r.Author = DefaultAuthor
	}
	r.Date = strings.TrimSpace(r.Date)
	if r.Date == "" {
		r.Date = now.Format(DateLayout)
	}
	r.Category = strings.TrimSpace(r.Category)
	return r
}

// Result describes what a publish wrote. On failure it holds the files
// written before the failing step.
type Result struct {
	ID           string
	Number       int
	PostPath     string
	MediaDir     string
	ThumbPath    string
	Files        []string
	CardInserted bool
	Placement    format.Placement
}

// Pipeline publishes posts to one repository branch.
type Pipeline struct {
	store         Store
	branch        string
	template      string
	logger        Logger
	progress      func(Progress)
	journal       Journal
	thumbMaxWidth int
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBranch sets the target branch (default "main").
func WithBranch(branch string) Option {
	return func(p *Pipeline) {
		if branch != "" {
			p.branch = branch
		}
	}
}

// WithTemplate replaces format.DefaultPostTemplate.
func WithTemplate(tpl string) Option {
	return func(p *Pipeline) {
		if tpl != "" {
			p.template = tpl
		}
	}
}

func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress registers a callback invoked at the start of every step.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithJournal records every publish attempt.
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithThumbnailMaxWidth downscales wider thumbnails before upload. Zero disables.
func WithThumbnailMaxWidth(w int) Option {
	return func(p *Pipeline) { p.thumbMaxWidth = w }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Pipeline writing through store.
func New(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		branch:   "main",
		template: format.DefaultPostTemplate,
		logger:   nopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Branch returns the target branch.
func (p *Pipeline) Branch() string { return p.branch }

// NextPostNumber lists posts/ and returns one more than the highest postN.html.
// A missing directory means no posts yet.
func (p *Pipeline) NextPostNumber(ctx context.Context) (int, error) {
	entries, err := p.store.ListDirectory(ctx, PostsDir, p.branch)
	if err != nil {
		if errors.Is(err, contents.ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	highest := 0
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		m := rePostFile.FindStringSubmatch(e.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// Preview renders the post page from the plain text of the content, without
// touching the repository.
func (p *Pipeline) Preview(req Request) string {
	req = req.withDefaults(p.now())
	var body string
	if req.Content != nil {
		body = format.PlainTextToHTML(req.Content.PlainText())
	}
	return format.BuildPostHTML(p.fields(req, body), p.template)
}

// Publish runs the full sequence for req.
func (p *Pipeline) Publish(ctx context.Context, req Request) (Result, error) {
	started := p.now()
	req = req.withDefaults(started)
	res := Result{ID: uuid.NewString()}

	var err error
	if verr := req.Validate(); verr != nil {
		err = &StepError{Step: StepValidate, Err: verr}
	} else {
		err = p.run(ctx, req, &res)
	}

	if err != nil {
		p.logger.Errorf("publish %s failed: %v", res.ID, err)
	} else {
		p.logger.Infof("publish %s done: %s", res.ID, res.PostPath)
	}
	p.record(ctx, res, err, started)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result) error {
	p.emit(Progress{Step: StepNumber})
	n, err := p.NextPostNumber(ctx)
	if err != nil {
		return &StepError{Step: StepNumber, Path: PostsDir, Err: err}
	}
	res.Number = n
	res.PostPath = fmt.Sprintf("%s/post%d.html", PostsDir, n)
	res.MediaDir = fmt.Sprintf("media/post%d/", n)

	if req.Thumbnail != nil {
		thumb := placeAsset(*req.Thumbnail, res.MediaDir)
		p.emit(Progress{Step: StepThumbnail, Number: n, Path: thumb.Path})
		data, resized, err := downscale(thumb.Data, p.thumbMaxWidth)
		switch {
		case err != nil:
			p.logger.Errorf("thumbnail %s not resized: %v", thumb.Path, err)
		case resized:
			p.logger.Infof("thumbnail %s resized to %dpx wide", thumb.Path, p.thumbMaxWidth)
			thumb.Data = data
		}
		if err := p.write(ctx, res, thumb.Path, thumb.Data, fmt.Sprintf("Add thumbnail for post%d", n), ""); err != nil {
			return &StepError{Step: StepThumbnail, Path: thumb.Path, Err: err}
		}
		res.ThumbPath = thumb.Path
	}

	images := make([]MediaAsset, 0, len(req.Images))
	for _, a := range req.Images {
		img := placeAsset(a, res.MediaDir)
		p.emit(Progress{Step: StepImage, Number: n, Path: img.Path})
		if err := p.write(ctx, res, img.Path, img.Data, fmt.Sprintf("Add image %s for post%d", img.FileName, n), ""); err != nil {
			return &StepError{Step: StepImage, Path: img.Path, Err: err}
		}
		images = append(images, img)
	}

	// Figures reference the images only after every upload succeeded.
	body := req.Content.HTML()
	if len(images) > 0 {
		var b strings.Builder
		b.WriteString(body)
		for _, img := range images {
			b.WriteByte('\n')
			b.WriteString(format.FigureHTML("../"+img.Path, format.StripExt(img.FileName), img.Width, img.Height))
		}
		body = b.String()
	}

	p.emit(Progress{Step: StepPost, Number: n, Path: res.PostPath})
	page := format.BuildPostHTML(p.fields(req, body), p.template)
	if err := p.write(ctx, res, res.PostPath, []byte(page), fmt.Sprintf("Create post%d.html", n), ""); err != nil {
		return &StepError{Step: StepPost, Path: res.PostPath, Err: err}
	}

	if res.ThumbPath == "" {
		return nil
	}
	p.emit(Progress{Step: StepHomepage, Number: n, Path: HomePagePath})
	if err := p.patchHomepage(ctx, req, res); err != nil {
		return &StepError{Step: StepHomepage, Path: HomePagePath, Err: err}
	}
	return nil
}

func (p *Pipeline) patchHomepage(ctx context.Context, req Request, res *Result) error {
	home, err := p.store.ReadFile(ctx, HomePagePath, p.branch)
	if err != nil {
		return err
	}
	card := format.BuildCardHTML(format.CardFields{
		Href:      res.PostPath,
		Title:     req.Title,
		Category:  req.Category,
		ThumbPath: res.ThumbPath,
	})
	updated, placement, err := format.InsertCard(string(home.Content), card)
	if err != nil {
		return err
	}
	if err := p.write(ctx, res, HomePagePath, []byte(updated), "Add new post card", home.SHA); err != nil {
		return err
	}
	res.CardInserted = true
	res.Placement = placement
	return nil
}

func (p *Pipeline) write(ctx context.Context, res *Result, path string, data []byte, message, sha string) error {
	_, err := p.store.WriteFile(ctx, contents.WriteRequest{
		Path:    path,
		Content: data,
		Message: message,
		Branch:  p.branch,
		SHA:     sha,
	})
	if err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	p.logger.Infof("wrote %s (%d bytes)", path, len(data))
	return nil
}

func (p *Pipeline) fields(req Request, body string) format.PostFields {
	return format.PostFields{
		Title:       req.Title,
		Author:      req.Author,
		Date:        req.Date,
		Category:    req.Category,
		ContentHTML: body,
	}
}

func (p *Pipeline) emit(pr Progress) {
	if p.progress != nil {
		p.progress(pr)
	}
}

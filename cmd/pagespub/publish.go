package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/adrg/frontmatter"
	"github.com/labstack/gommon/log"
	flag "github.com/spf13/pflag"

	"github.com/eringen/pagespub"
	"github.com/eringen/pagespub/contents"
	"github.com/eringen/pagespub/publish"
)

// postMeta is the frontmatter a markdown post may carry.
type postMeta struct {
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Date     string `yaml:"date"`
	Category string `yaml:"category"`
}

func runPublish(args []string, out io.Writer) error {
	var (
		common commonFlags
		repo   repoFlags
		post   postFlags
	)
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	addCommonFlags(fs, &common)
	addRepoFlags(fs, &repo)
	addPostFlags(fs, &post)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common, repo)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRepository(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	req, err := buildRequest(post)
	if err != nil {
		return err
	}

	logger := newLogger(common.verbose)
	p, closeJournal, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := p.Publish(ctx, req)
	for _, f := range res.Files {
		fmt.Fprintf(out, "wrote %s\n", f)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Published %s\n", res.PostPath)
	return nil
}

// newPipeline builds a pipeline for cfg. The returned func closes the journal.
func newPipeline(cfg pagespub.Config, logger *log.Logger) (*publish.Pipeline, func(), error) {
	token := pagespub.TokenFromEnv()
	if token == "" {
		return nil, nil, fmt.Errorf("%w: set PAGESPUB_TOKEN or GITHUB_TOKEN", contents.ErrMissingCredential)
	}
	tpl, err := cfg.LoadTemplate()
	if err != nil {
		return nil, nil, err
	}

	client := contents.New(cfg.Owner, cfg.Repo, contents.NewSession(token),
		contents.WithBaseURL(cfg.APIBaseURL),
		contents.WithHTTPClient(cfg.HTTPClient()),
	)
	opts := []publish.Option{
		publish.WithBranch(cfg.Branch),
		publish.WithTemplate(tpl),
		publish.WithLogger(logger),
		publish.WithThumbnailMaxWidth(cfg.ThumbnailMaxWidth),
		publish.WithProgress(func(pr publish.Progress) {
			logger.Debugf("%s %s", pr.Step, pr.Path)
		}),
	}

	closeJournal := func() {}
	if cfg.JournalEnabled() {
		j, err := pagespub.OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, publish.WithJournal(j.For(cfg.Owner, cfg.Repo)))
		closeJournal = func() { j.Close() }
	}
	return publish.New(client, opts...), closeJournal, nil
}

func newLogger(verbose bool) *log.Logger {
	logger := log.New("pagespub")
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	if verbose {
		logger.SetLevel(log.DEBUG)
	} else {
		logger.SetLevel(log.WARN)
	}
	return logger
}

// buildRequest reads the body and media files named by the flags.
func buildRequest(f postFlags) (publish.Request, error) {
	var req publish.Request

	set := 0
	for _, s := range []string{f.markdown, f.html, f.text} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return req, errors.New("exactly one of --md, --html or --text is required")
	}

	switch {
	case f.markdown != "":
		data, err := os.ReadFile(f.markdown)
		if err != nil {
			return req, err
		}
		meta, body, err := parseMarkdown(data)
		if err != nil {
			return req, fmt.Errorf("%s: %w", f.markdown, err)
		}
		req.Title, req.Author, req.Date, req.Category = meta.Title, meta.Author, meta.Date, meta.Category
		req.Content = publish.MarkdownContent(body)
	case f.html != "":
		data, err := os.ReadFile(f.html)
		if err != nil {
			return req, err
		}
		req.Content = publish.HTMLContent(data)
	default:
		data, err := os.ReadFile(f.text)
		if err != nil {
			return req, err
		}
		req.Content = publish.PlainTextContent(data)
	}

	override(&req.Title, f.title)
	override(&req.Author, f.author)
	override(&req.Date, f.date)
	override(&req.Category, f.category)

	if f.thumb != "" {
		a, err := readAsset(f.thumb)
		if err != nil {
			return req, err
		}
		req.Thumbnail = &a
	}
	for _, path := range f.images {
		a, err := readAsset(path)
		if err != nil {
			return req, err
		}
		req.Images = append(req.Images, a)
	}
	return req, nil
}

// parseMarkdown splits optional YAML frontmatter from the markdown body.
func parseMarkdown(data []byte) (postMeta, string, error) {
	var meta postMeta
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		return postMeta{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, string(body), nil
}

func readAsset(path string) (publish.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return publish.Asset{}, err
	}
	return publish.Asset{Name: filepath.Base(path), Data: data}, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

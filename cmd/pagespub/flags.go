package main

import (
	flag "github.com/spf13/pflag"

	"github.com/eringen/pagespub"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	verbose bool
}

// repoFlags override the repository coordinates from the config file.
type repoFlags struct {
	owner  string
	repo   string
	branch string
}

// postFlags hold the post inputs for publish.
type postFlags struct {
	markdown string
	html     string
	text     string
	thumb    string
	images   []string
	title    string
	author   string
	date     string
	category string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every step")
}

func addRepoFlags(fs *flag.FlagSet, f *repoFlags) {
	fs.StringVar(&f.owner, "owner", "", "repository owner (overrides config)")
	fs.StringVar(&f.repo, "repo", "", "repository name (overrides config)")
	fs.StringVar(&f.branch, "branch", "", "target branch (overrides config)")
}

func addPostFlags(fs *flag.FlagSet, f *postFlags) {
	fs.StringVar(&f.markdown, "md", "", "markdown file with optional YAML frontmatter")
	fs.StringVar(&f.html, "html", "", "HTML body file")
	fs.StringVar(&f.text, "text", "", "plain text body file")
	fs.StringVar(&f.thumb, "thumb", "", "thumbnail image (adds a homepage card)")
	fs.StringArrayVar(&f.images, "image", nil, "inline image, repeatable")
	fs.StringVar(&f.title, "title", "", "post title (overrides frontmatter)")
	fs.StringVar(&f.author, "author", "", "post author (overrides frontmatter)")
	fs.StringVar(&f.date, "date", "", "post date YYYY-MM-DD (overrides frontmatter)")
	fs.StringVar(&f.category, "category", "", "post category (overrides frontmatter)")
}

// loadConfig reads the config file and applies the repository overrides.
func loadConfig(common commonFlags, repo repoFlags) (pagespub.Config, error) {
	cfg, err := pagespub.LoadConfig(common.config)
	if err != nil {
		return pagespub.Config{}, err
	}
	if repo.owner != "" {
		cfg.Owner = repo.owner
	}
	if repo.repo != "" {
		cfg.Repo = repo.repo
	}
	if repo.branch != "" {
		cfg.Branch = repo.branch
	}
	return cfg, nil
}

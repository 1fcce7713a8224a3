package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("no command given")
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "publish":
		return runPublish(args[1:], out)
	case "next":
		return runNext(args[1:], out)
	case "version":
		fmt.Fprintf(out, "pagespub %s\n", version)
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `pagespub - publish posts to a GitHub Pages site through the contents API

Usage:
  pagespub <command> [flags]

Commands:
  serve         Run the admin panel
  publish       Publish one post from local files
  next          Print the next post number
  version       Print the pagespub version
  help          Show this help message

The GitHub token is read from PAGESPUB_TOKEN or GITHUB_TOKEN.

Examples:
  pagespub serve --config pagespub.yaml
  pagespub publish --config pagespub.yaml --md post.md --thumb cover.jpg --image a.png --image b.png
  pagespub next --owner octo --repo octo.github.io`)
}

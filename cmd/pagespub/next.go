package main

import (
	"context"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/eringen/pagespub"
)

func runNext(args []string, out io.Writer) error {
	var (
		common commonFlags
		repo   repoFlags
	)
	fs := flag.NewFlagSet("next", flag.ContinueOnError)
	addCommonFlags(fs, &common)
	addRepoFlags(fs, &repo)
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
	// Reading the number is not a publish; keep it out of the journal.
	cfg.JournalPath = pagespub.JournalOff

	p, closeJournal, err := newPipeline(cfg, newLogger(common.verbose))
	if err != nil {
		return err
	}
	defer closeJournal()

	n, err := p.NextPostNumber(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

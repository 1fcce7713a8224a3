package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	flag "github.com/spf13/pflag"

	"github.com/eringen/pagespub"
)

func runServe(args []string) error {
	var common commonFlags
	var addr string
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addCommonFlags(fs, &common)
	fs.StringVar(&addr, "addr", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common, repoFlags{})
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	app := pagespub.New(cfg)
	defer app.Close()
	if common.verbose {
		app.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		app.Echo.Logger.SetLevel(log.INFO)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Echo.Shutdown(shutdownCtx)
	}()

	return app.Start()
}

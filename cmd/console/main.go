package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulzo/prism-console/cmd"
	"github.com/nulzo/prism-console/internal/cli"
	"github.com/nulzo/prism-console/internal/config"
	"github.com/nulzo/prism-console/internal/platform/logger"
	"github.com/nulzo/prism-console/internal/platform/otel"
	"go.uber.org/zap"
)

const usage = `Usage: console [flags] <command> [args]

Commands:
  status                          show the admin server version
  providers                       list providers
  rules [-scenario s] [-json]     list routing rules
  rules export [-scenario s]      print routing rules as YAML
  rule add -request m -provider p -model x [-scenario s] [-weight n]
  rule delete <uuid>
  models <provider>               list cached models of a provider
  models refresh <provider>       re-probe a provider's models
  guardrails                      list guardrail rules
  guardrails duplicate <id>       copy a guardrail rule

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to console.yaml")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	trace := fs.Bool("trace", false, "print admin API spans to stderr")
	skipVersion := fs.Bool("skip-version-check", false, "do not check the admin server version")
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if *noColor {
		cli.SetEnabled(false)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s %v\n", cli.CrossMark(), err)
		return 1
	}

	logger.Initialize(logger.DefaultConfig().WithOverrides(cfg.Log.Level, cfg.Log.Format))
	defer logger.Sync()
	log := logger.Get()

	tracerCfg := otel.TracerConfig{ServiceName: "prism-console", Version: cmd.AppVersion}
	if *trace {
		tracerCfg.Writer = stderr
	}
	shutdown, err := otel.InitTracer(tracerCfg, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	a, err := newApp(ctx, cfg, log, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s %v\n", cli.CrossMark(), err)
		return 1
	}
	defer a.close()

	if !*skipVersion {
		if err := a.checkServer(ctx, stderr); err != nil {
			_, _ = fmt.Fprintf(stderr, "%s %v\n", cli.CrossMark(), err)
			return 1
		}
	}

	if err := a.dispatch(ctx, fs.Args()); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			_, _ = fmt.Fprintf(stderr, "%s %v\n", cli.CrossMark(), err)
			fs.Usage()
			return 2
		}
		log.Debug("Command failed", zap.Error(err))
		return 1
	}
	return 0
}

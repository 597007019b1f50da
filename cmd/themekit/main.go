package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/themekit/internal/bundle"
	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/daemon"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
	"git.home.luguber.info/inful/themekit/internal/pages"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"themekit.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Drafts bool   `help:"Include pages marked draft"`
		Output string `short:"o" help:"Override the output directory"`
		Base   string `help:"Override the public base path for asset URLs"`
	} `cmd:"" help:"Build the site once: bundle assets, publish the manifest, render pages"`

	Dev struct {
		Port int `short:"p" help:"Override the dev server port"`
	} `cmd:"" help:"Watch sources and serve the site with live updates"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	errs := ferrors.NewCLIAdapter(CLI.Verbose, logger)

	switch kctx.Command() {
	case "build":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			errs.HandleError(err)
		}
		if CLI.Build.Output != "" {
			cfg.Output.Dir = CLI.Build.Output
		}
		if CLI.Build.Base != "" {
			cfg.Output.PublicBase = CLI.Build.Base
		}
		if err := runBuild(context.Background(), cfg, CLI.Build.Drafts, logger); err != nil {
			errs.HandleError(err)
		}
	case "dev":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			errs.HandleError(err)
		}
		if CLI.Dev.Port != 0 {
			cfg.Dev.Port = CLI.Dev.Port
		}
		if err := runDev(cfg, logger); err != nil {
			errs.HandleError(err)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			errs.HandleError(err)
		}
		logger.Info("configuration written", slog.String("path", CLI.Config))
	}
}

// runBuild is the one-shot production build: assets first so the manifest is
// published before any page reads it.
func runBuild(ctx context.Context, cfg *config.Config, drafts bool, logger *slog.Logger) error {
	bundler := bundle.New(cfg)
	man, _, err := bundler.BuildOnce(ctx)
	if err != nil {
		return err
	}

	bridge := manifest.NewBridge(cfg.ManifestPath())
	if err := bridge.Publish(man); err != nil {
		return err
	}
	logger.Info("assets bundled",
		slog.Int("entries", len(man.Assets)),
		slog.String("fingerprint", man.ContentFingerprint()))

	generator, err := pages.NewGenerator(cfg, bridge, logger)
	if err != nil {
		return err
	}
	generator.IncludeDrafts = drafts
	if err := generator.GenerateAll(ctx); err != nil {
		return err
	}

	logger.Info("build complete", slog.String("output", cfg.Output.Dir))
	return nil
}

// runDev blocks until interrupted.
func runDev(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

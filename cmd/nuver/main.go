package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/core/cli"
	"github.com/emenda-labs/nuver/core/config"
	"github.com/emenda-labs/nuver/core/report"
	"github.com/emenda-labs/nuver/core/version"
	"github.com/emenda-labs/nuver/drivers/dotnet"
	"github.com/emenda-labs/nuver/drivers/dotnet/apidiff"
	"github.com/emenda-labs/nuver/drivers/dotnet/command"
	"github.com/emenda-labs/nuver/drivers/dotnet/csharp"
	"github.com/emenda-labs/nuver/pkg/cache"
	"github.com/emenda-labs/nuver/pkg/logging"
	"github.com/emenda-labs/nuver/pkg/nuget"
)

const appVersion = "0.1.0"

// exitCanceled follows the shell convention for SIGINT.
const exitCanceled = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var globals cli.GlobalOptions

	runDetect := func(ctx context.Context, opts cli.DetectOptions) error {
		a, err := newApp(&globals, filepath.Dir(opts.Project))
		if err != nil {
			return err
		}
		defer a.close()
		return a.detect(ctx, opts)
	}

	runSurface := func(ctx context.Context, opts cli.SurfaceOptions) error {
		dir := "."
		if opts.Project != "" {
			dir = filepath.Dir(opts.Project)
		}
		a, err := newApp(&globals, dir)
		if err != nil {
			return err
		}
		defer a.close()
		return a.surface(ctx, opts)
	}

	root := cli.NewRootCmd(appVersion, &globals)
	root.AddCommand(cli.NewDetectCmd(runDetect))
	root.AddCommand(cli.NewSurfaceCmd(runSurface))

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "canceled")
			os.Exit(exitCanceled)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the components wired from configuration for one run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	driver *dotnet.Driver
	store  *cache.Store
}

func newApp(globals *cli.GlobalOptions, projectDir string) (*app, error) {
	cfg, err := config.Load(projectDir, globals.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := logging.LevelFromString(cfg.Log.Level)
	if globals.Verbose > 0 || globals.Quiet {
		level = logging.LevelFromVerbosity(globals.Verbose, globals.Quiet)
	}
	logger := logging.New(os.Stderr, level, cfg.Log.Format).With("run", uuid.NewString())

	a := &app{cfg: cfg, logger: logger}

	sources := make([]string, len(cfg.Sources))
	for i, s := range cfg.Sources {
		sources[i] = resolveSource(projectDir, s)
	}
	registry := nuget.NewClient(nuget.Options{Sources: sources, Logger: logger})

	var pkgCache dotnet.PackageCache
	if cfg.Cache.Path != "" {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening package cache: %w", err)
		}
		a.store = store
		pkgCache = store
	}

	var compiler dotnet.Compiler
	switch cfg.Compiler.Mode {
	case config.ModeExec:
		c, err := command.NewCompiler(cfg.Compiler.Command, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		compiler = c
	default:
		compiler = csharp.NewCompiler(csharp.Options{Exclude: cfg.Compiler.Exclude, Logger: logger})
	}

	addedType, err := cfg.AddedTypeSeverity()
	if err != nil {
		a.close()
		return nil, err
	}

	a.driver = dotnet.NewDriver(dotnet.Options{
		Registry:    registry,
		Provider:    dotnet.NewPackageProvider(registry, pkgCache, logger),
		Compiler:    compiler,
		Policy:      apidiff.Policy{AddedType: addedType},
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing package cache", "error", err)
		}
	}
}

// resolveSource makes relative local feed paths relative to the project.
func resolveSource(projectDir, source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") || filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(projectDir, source)
}

func (a *app) detect(ctx context.Context, opts cli.DetectOptions) error {
	spec, err := a.driver.ResolveSpec(opts.Project)
	if err != nil {
		return err
	}
	if opts.PackageID != "" {
		spec.ID = opts.PackageID
	}
	if opts.AssemblyName != "" {
		spec.AssemblyName = opts.AssemblyName
	}
	if len(opts.Frameworks) > 0 {
		spec.Targets = spec.Targets[:0]
		for _, f := range opts.Frameworks {
			spec.Targets = append(spec.Targets, changespec.NormalizeTarget(f))
		}
	}
	spec.IncludePrerelease = opts.Prerelease || a.cfg.IncludePrerelease
	spec.DefaultVersion = a.cfg.DefaultVersion
	if opts.DefaultVersion != "" {
		spec.DefaultVersion = opts.DefaultVersion
	}
	if len(spec.Targets) == 0 {
		return fmt.Errorf("no target frameworks declared in %s", opts.Project)
	}

	a.logger.Info("detecting version", "package", spec.ID, "targets", len(spec.Targets))
	summary, err := a.driver.ComputeChanges(ctx, spec)
	if err != nil {
		return err
	}

	next, err := version.Next(summary.Severity(), summary.CurrentVersion(), spec.DefaultVersion)
	if err != nil {
		return err
	}
	rep := report.New(spec.ID, summary, next)

	if opts.NoColor {
		color.NoColor = true
	}
	pretty := !opts.NoColor && report.IsTerminal(os.Stdout)
	fmt.Print(report.NewRenderer(pretty).Text(rep))

	if opts.Output != "" {
		if err := writeReport(opts.Output, rep); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(path string, rep *report.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.Encode(f, rep, report.FormatFromPath(path))
}

func (a *app) surface(ctx context.Context, opts cli.SurfaceOptions) error {
	target := changespec.NormalizeTarget(opts.Framework)

	if opts.Project != "" {
		s, err := a.driver.CandidateSurface(ctx, opts.Project, target)
		if err != nil {
			return err
		}
		return s.WriteYAML(os.Stdout, string(target))
	}

	s, err := a.driver.PublishedSurface(ctx, opts.Package, opts.Version, target, opts.Prerelease || a.cfg.IncludePrerelease)
	if err != nil {
		return err
	}
	return s.WriteYAML(os.Stdout, string(target))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/greyskyy/orbit-tool/internal/app"
	"github.com/greyskyy/orbit-tool/internal/config"
	"github.com/greyskyy/orbit-tool/internal/observability"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/spf13/pflag"
)

const usage = `usage: orbit-tool [global flags] <command> [flags] [args]

commands:
  classify <orbit>            print the most specific representation of an orbit
  convert --from <orbit>      fit an orbit in another representation
  compare <orbit> <orbit>     relative motion of the second orbit about the first
  check-tle --orbit <orbit>   SGP4 against the numerical propagator
  sample <orbit>              write an ephemeris as CSV
  passes <orbit>...           visibility windows from an observer
  fetch <catnr>               retrieve and cache an element set
  history <orbit>             list archived conversions

global flags:
`

// command describes one subcommand: its flags and how to run it.
type command struct {
	name  string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("orbit-tool", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(stderr)
	configPath := global.StringP("config", "c", "", "path to the configuration yaml file (default "+config.DefaultFile+" when present)")
	logLevel := global.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := global.String("log-format", "json", "log format: json or text")
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger, err := newLogger(stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	cmd, ok := commands()[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		global.Usage()
		return 2
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cmd, fs, *configPath, logger, stdout, stderr); err != nil {
		logger.Error("command failed", "command", cmd.name, "error", err)
		if errors.Is(err, orbit.ErrConfiguration) {
			return 2
		}
		return 1
	}
	return 0
}

func execute(ctx context.Context, cmd command, fs *pflag.FlagSet, configPath string, logger *slog.Logger, stdout, stderr io.Writer) error {
	v, err := config.Load(configPath, fs)
	if err != nil {
		return err
	}
	bindAlias(v.BindPFlag, "observer.latitude", fs.Lookup("lat"))
	bindAlias(v.BindPFlag, "observer.longitude", fs.Lookup("lon"))
	bindAlias(v.BindPFlag, "observer.altitude", fs.Lookup("alt"))
	bindAlias(v.BindPFlag, "passes.min_elevation", fs.Lookup("min-elevation"))
	bindAlias(v.BindPFlag, "passes.max_passes", fs.Lookup("max-passes"))

	a, err := app.New(v, logger, stdout)
	if err != nil {
		return err
	}

	settings := a.Settings()
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     settings.Tracing.Enabled,
		ServiceName: settings.Tracing.ServiceName,
		Writer:      stderr,
	}, logger)
	if err != nil {
		a.Close()
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)

	logger.Debug("running command", "command", cmd.name)
	runErr := cmd.run(ctx, a, fs)
	if err := a.Close(); err != nil {
		logger.Warn("cleanup failed", "error", err)
	}
	return runErr
}

// bindAlias binds a flag to a nested configuration key when the command
// defines it.
func bindAlias(bind func(string, *pflag.Flag) error, key string, f *pflag.Flag) {
	if f != nil {
		_ = bind(key, f)
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q", format)
}

func spanFlags(fs *pflag.FlagSet) {
	fs.StringP("duration", "d", "", "propagation duration, ISO-8601 or seconds; overrides stop")
	fs.StringP("step", "s", "", "propagation step, ISO-8601 or seconds (default 10 minutes)")
	fs.String("start", "", "start time, RFC 3339 (default the orbit epoch)")
	fs.String("stop", "", "stop time, RFC 3339 (default two weeks after start)")
}

func reportFlags(fs *pflag.FlagSet) {
	spanFlags(fs)
	fs.Bool("summary", true, "print the maximum error per axis")
	fs.StringP("output-format", "o", app.OutputNone, "output format: none, csv or sqlite")
	fs.Bool("csv", false, "write CSV output; same as -o csv")
	fs.StringP("file", "f", "outfile", "path of the CSV output")
}

func reportOptions(fs *pflag.FlagSet) app.CompareOptions {
	opts := app.CompareOptions{Output: app.OutputNone, File: "outfile", Summary: true}
	opts.Output, _ = fs.GetString("output-format")
	if csv, _ := fs.GetBool("csv"); csv {
		opts.Output = app.OutputCSV
	}
	opts.File, _ = fs.GetString("file")
	opts.Summary, _ = fs.GetBool("summary")
	return opts
}

// exactArgs checks the positional argument count.
func exactArgs(fs *pflag.FlagSet, n int, what string) error {
	if fs.NArg() != n {
		return fmt.Errorf("%w: %s expects %s", orbit.ErrConfiguration, fs.Name(), what)
	}
	return nil
}

func commands() map[string]command {
	list := []command{
		{
			name: "classify",
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if err := exactArgs(fs, 1, "one orbit name"); err != nil {
					return err
				}
				return a.Classify(ctx, fs.Arg(0))
			},
		},
		{
			name: "convert",
			flags: func(fs *pflag.FlagSet) {
				spanFlags(fs)
				fs.String("from", "", "orbit to convert")
				fs.String("to", "auto_select", "target representation: tle, keplerian, circular, equinoctial or auto_select")
				fs.String("seed-orbit", "", "orbit used to seed the fit; must be compatible with --to")
				fs.Bool("archive", false, "store the result in the archive")
			},
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				var opts app.ConvertOptions
				opts.Orbit, _ = fs.GetString("from")
				opts.To, _ = fs.GetString("to")
				opts.SeedOrbit, _ = fs.GetString("seed-orbit")
				opts.Archive, _ = fs.GetBool("archive")
				if opts.Orbit == "" {
					return fmt.Errorf("%w: convert needs --from", orbit.ErrConfiguration)
				}
				return a.Convert(ctx, opts)
			},
		},
		{
			name:  "compare",
			flags: reportFlags,
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if err := exactArgs(fs, 2, "two orbit names"); err != nil {
					return err
				}
				return a.Compare(ctx, fs.Arg(0), fs.Arg(1), reportOptions(fs))
			},
		},
		{
			name: "check-tle",
			flags: func(fs *pflag.FlagSet) {
				reportFlags(fs)
				fs.String("orbit", "", "element set to check")
			},
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				name, _ := fs.GetString("orbit")
				if name == "" {
					return fmt.Errorf("%w: check-tle needs --orbit", orbit.ErrConfiguration)
				}
				return a.CheckTLE(ctx, name, reportOptions(fs))
			},
		},
		{
			name: "sample",
			flags: func(fs *pflag.FlagSet) {
				spanFlags(fs)
				fs.StringP("file", "f", "-", "path of the CSV output; - writes to stdout")
			},
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if err := exactArgs(fs, 1, "one orbit name"); err != nil {
					return err
				}
				file, _ := fs.GetString("file")
				return a.Sample(ctx, fs.Arg(0), file)
			},
		},
		{
			name: "passes",
			flags: func(fs *pflag.FlagSet) {
				spanFlags(fs)
				fs.String("lat", "", "observer geodetic latitude, deg")
				fs.String("lon", "", "observer longitude, deg")
				fs.String("alt", "", "observer altitude, e.g. \"35 m\" (bare numbers are km)")
				fs.String("min-elevation", "", "elevation mask, deg (default 10)")
				fs.String("max-passes", "", "maximum passes per orbit (default unlimited)")
			},
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if fs.NArg() == 0 {
					return fmt.Errorf("%w: passes expects at least one orbit name", orbit.ErrConfiguration)
				}
				return a.Passes(ctx, fs.Args())
			},
		},
		{
			name: "fetch",
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if err := exactArgs(fs, 1, "one catalog number"); err != nil {
					return err
				}
				catnr, err := strconv.Atoi(fs.Arg(0))
				if err != nil || catnr <= 0 {
					return fmt.Errorf("%w: invalid catalog number %q", orbit.ErrConfiguration, fs.Arg(0))
				}
				return a.Fetch(ctx, catnr)
			},
		},
		{
			name: "history",
			run: func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
				if err := exactArgs(fs, 1, "one orbit name"); err != nil {
					return err
				}
				return a.History(ctx, fs.Arg(0))
			},
		},
	}

	byName := make(map[string]command, len(list))
	for _, c := range list {
		byName[c.name] = c
	}
	return byName
}

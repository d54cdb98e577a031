package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/logging"
	intOtel "github.com/kinemo/motionrec/internal/otel"
	"github.com/kinemo/motionrec/internal/session"
	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"
)

const appName = "motionrec"

// app holds the process-wide services shared by every command.
type app struct {
	stdout io.Writer

	start   time.Time
	slog    *logging.SlogManager
	logger  *slog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	session *session.Context
}

type command struct {
	usage string
	short string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, a *app, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"record":  recordCmd,
	"solve":   solveCmd,
	"inspect": inspectCmd,
	"import":  importCmd,
	"export":  exportCmd,
	"list":    listCmd,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		return 2
	}
	if args[0] == "version" {
		fmt.Fprintf(stdout, "%s %s (built %s)\n", appName, Version, BuildDate)
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "DEBUG, INFO, WARN or ERROR")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s\n\n%s\n\nFlags:\n", appName, cmd.usage, cmd.short)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	a := &app{stdout: stdout, start: time.Now(), session: session.NewContext()}
	configDir, _ := fs.GetString("config")
	if err := a.setup(configDir, fs); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}
	defer a.close()

	if err := cmd.run(ctx, a, fs); err != nil {
		a.logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(stderr, "%s %s: %v\n", appName, args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", appName)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].short)
	}
	fmt.Fprintf(w, "  %-8s %s\n", "version", "Print the version")
}

// setup loads the config and brings up logging and telemetry. Logs go to a
// per-run file in logsDir.
func (a *app) setup(configDir string, fs *pflag.FlagSet) error {
	a.slog = logging.NewSlogManager()

	cfgErr := config.Load(configDir)
	if err := config.BindFlags(fs); err != nil {
		return err
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, a.start)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	a.otel, err = intOtel.New(intOtel.FromConfig(otelCfg, f))
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}

	if config.GetBool("graylog.enabled") {
		if err := a.slog.EnableGraylog(config.GetString("graylog.address")); err != nil {
			fmt.Fprintf(os.Stderr, "%s: graylog disabled: %v\n", appName, err)
		}
	}
	a.slog.SetContextProvider(a.session.LogAttrs)

	var logProvider *sdklog.LoggerProvider
	if a.otel.Enabled() {
		logProvider = a.otel.LoggerProvider()
	}
	a.slog.Setup(f, config.GetString("logLevel"), logProvider)
	a.logger = a.slog.Logger()
	slog.SetDefault(a.logger)

	if cfgErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		a.logger.Info("Loaded config", "dir", configDir)
	}
	a.logger.Info("Starting", "version", Version, "build", BuildDate, "log", logPath)
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.slog != nil {
		_ = a.slog.Close(ctx)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

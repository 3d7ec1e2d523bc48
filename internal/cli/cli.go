package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/cookbridge/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// pathList collects a repeatable path flag.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*p = append(*p, s)
		}
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("cookbridge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
cookbridge - Drives procedural assets through a cook engine and keeps
their meshes in step with parameter edits.

Usage:
  cookbridge [options] SCENE_PATH

Arguments:
  SCENE_PATH
    Path to an .hcl scene file listing the placed asset instances.

Options:
`)
		flagSet.PrintDefaults()
	}

	var definitions pathList
	flagSet.Var(&definitions, "definitions", "Asset definition file or directory. Repeatable or comma separated. (default \"definitions\")")
	configFlag := flagSet.String("config", "", "Path to the bridge settings file. Defaults are used when empty.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Directory for the persistent result cache. Results are kept in memory when empty.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	tickFlag := flagSet.Duration("tick", 16*time.Millisecond, "Interval of the host update cycle.")
	watchFlag := flagSet.Bool("watch", false, "Keep running and reload definitions when their files change.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No scene path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one scene path, got %d", flagSet.NArg())}
	}
	if len(definitions) == 0 {
		definitions = pathList{"definitions"}
	}

	config, err := app.NewConfig(app.Config{
		ScenePath:       flagSet.Arg(0),
		DefinitionPaths: definitions,
		ConfigPath:      *configFlag,
		CacheDir:        *cacheDirFlag,
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		HealthcheckPort: *healthPortFlag,
		TickInterval:    *tickFlag,
		Watch:           *watchFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

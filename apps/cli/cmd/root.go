package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/fetchling/packages/core/config"
	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
	"github.com/abdul-hamid-achik/fetchling/packages/output"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	envFileFlag  string
	outputFlag   string
	noColorFlag  bool
	verboseFlag  bool
	timeoutFlag  string
	proxyFlag    string
	insecureFlag bool
	baseURLFlag  string
	headerFlags  []string
	jsonFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "fetchling",
	Short: "Chainable HTTP resources from the command line.",
	Long: `fetchling sends HTTP requests to resources derived from a base URL.
Path segments are joined onto the base the same way sub-resources are
derived in code, and YAML resource trees describe whole APIs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil && !exitErr.reported {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.err)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsageError)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("FETCHLING_CONFIG", ""), "Path to config file (env: FETCHLING_CONFIG)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("FETCHLING_ENV_FILE", ""), "Path to .env file loaded before expanding $VARS (env: FETCHLING_ENV_FILE)")
	flags.StringVarP(&outputFlag, "output", "o", getEnvString("FETCHLING_OUTPUT", ""), "Output format: console, json (env: FETCHLING_OUTPUT)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("FETCHLING_NO_COLOR", false), "Disable colored output (env: FETCHLING_NO_COLOR)")
	flags.BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("FETCHLING_VERBOSE", false), "Show response headers and debug logs (env: FETCHLING_VERBOSE)")
	flags.StringVar(&timeoutFlag, "timeout", getEnvString("FETCHLING_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: FETCHLING_TIMEOUT)")
	flags.StringVar(&proxyFlag, "proxy", getEnvString("FETCHLING_PROXY", ""), "Proxy URL for HTTP requests (env: FETCHLING_PROXY)")
	flags.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("FETCHLING_INSECURE", false), "Disable SSL certificate validation (env: FETCHLING_INSECURE)")
	flags.StringVar(&baseURLFlag, "base-url", getEnvString("FETCHLING_BASE_URL", ""), "Prefix for relative request URLs (env: FETCHLING_BASE_URL)")
	flags.StringArrayVarP(&headerFlags, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	flags.BoolVarP(&jsonFlag, "json", "j", getEnvBool("FETCHLING_JSON", false), "Accept JSON and parse responses (env: FETCHLING_JSON)")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(versionCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return val == "yes"
		}
		return b
	}
	return defaultVal
}

// exitError carries the process exit code for a failed command. reported is
// set when the formatter already printed err.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// loadSettings reads the env file and config file, then applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	if envFileFlag != "" {
		if err := godotenv.Load(envFileFlag); err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("cannot load env file: %w", err))
		}
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("cannot load config: %w", err))
	}

	overrides := &config.Config{
		BaseURL: os.ExpandEnv(baseURLFlag),
		Proxy:   os.ExpandEnv(proxyFlag),
		Output:  strings.ToLower(outputFlag),
	}

	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		overrides.Timeout = int(timeout.Milliseconds())
	}

	flags := cmd.Flags()
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if flags.Changed("json") || jsonFlag {
		overrides.JSON = config.BoolPtr(jsonFlag)
	}
	if flags.Changed("verbose") || verboseFlag {
		overrides.Verbose = config.BoolPtr(verboseFlag)
	}
	if flags.Changed("no-color") || noColorFlag {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	}

	if len(headerFlags) > 0 {
		headers, err := parseHeaders(headerFlags)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		overrides.Headers = headers
	}

	cfg := fileConfig.Merge(overrides)
	if cfg.Headers != nil {
		expanded := make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			expanded[k] = os.ExpandEnv(v)
		}
		cfg.Headers = expanded
	}
	cfg.BaseURL = os.ExpandEnv(cfg.BaseURL)

	return cfg, nil
}

// parseHeaders splits "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// newLogger returns a development logger at Debug level when verbose,
// otherwise a no-op logger.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.GetVerbose() {
		return zap.NewNop(), nil
	}
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	zapConfig.OutputPaths = []string{"stderr"}
	return zapConfig.Build()
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResponse(resp *fhttp.Response)
	FormatSelection(resp *fhttp.Response, path string)
	FormatSchema(err error)
	FormatResources(name string, entries []output.ResourceEntry)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(cfg *config.Config, w io.Writer) Formatter {
	switch cfg.Output {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w))
	default: // "console"
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
		)
	}
}

func flush(formatter Formatter, started time.Time) error {
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(time.Since(started)); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	neturl "net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/fetchling/packages/core/config"
	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request <url> [path...]",
	Short: "Send a request to a URL derived from a base and path segments",
	Long: `Send a single HTTP request. Every path argument is joined onto the URL
the way sub-resources are derived, so duplicate slashes collapse and query
strings merge.

Examples:
  fetchling request https://api.example.com/v1 users 42
  fetchling request https://api.example.com/v1 users -X POST --json-body '{"name":"ada"}'
  fetchling request /users --base-url https://api.example.com -q page=2 -j --select 'items.#.id'
  fetchling request https://api.example.com/health --schema health.schema.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: requestCommand,
}

var (
	methodFlag    string
	queryFlags    []string
	dataFlag      string
	jsonBodyFlag  string
	noParseFlag   bool
	selectFlag    string
	schemaFlag    string
	requestIDFlag bool
	failFlag      bool
)

func init() {
	addRequestFlags(requestCmd)
	requestCmd.Flags().StringVarP(&methodFlag, "method", "X", getEnvString("FETCHLING_METHOD", "GET"), "HTTP method (env: FETCHLING_METHOD)")
	requestCmd.Flags().StringArrayVarP(&queryFlags, "query", "q", nil, "Query parameter as key=value (repeatable)")
	requestCmd.Flags().StringVarP(&dataFlag, "data", "d", "", "Raw request body, or @file to read it from a file")
	requestCmd.Flags().StringVar(&jsonBodyFlag, "json-body", "", "JSON request body; sets Content-Type: application/json")
}

// addRequestFlags registers the flags shared by request and call.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noParseFlag, "no-parse", false, "Do not parse the response body")
	cmd.Flags().StringVar(&selectFlag, "select", "", "Print the value at a gjson path of the response body")
	cmd.Flags().StringVar(&schemaFlag, "schema", "", "Validate the response body against a JSON schema file")
	cmd.Flags().BoolVar(&requestIDFlag, "request-id", getEnvBool("FETCHLING_REQUEST_ID", false), "Send a random X-Request-Id header (env: FETCHLING_REQUEST_ID)")
	cmd.Flags().BoolVar(&failFlag, "fail", getEnvBool("FETCHLING_FAIL", false), "Exit non-zero when the response status is not 2xx (env: FETCHLING_FAIL)")
}

func requestCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("cannot create logger: %w", err))
	}
	defer func() { _ = logger.Sync() }()

	client := fhttp.NewClient(cfg.ClientOptions(logger)...)
	resource := client.Resource(resolveBaseURL(cfg, os.ExpandEnv(args[0])), cfg.Init(), sessionInit())
	for _, path := range args[1:] {
		resource = resource.Derive(os.ExpandEnv(path))
	}

	call, err := requestInit()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter := newFormatter(cfg, cmd.OutOrStdout())
	if cfg.GetVerbose() {
		formatter.FormatHeader(version)
	}
	return send(ctx, formatter, func(ctx context.Context) (*fhttp.Response, error) {
		return resource.Fetch(ctx, call)
	})
}

// resolveBaseURL prefixes a relative URL with the configured base URL.
func resolveBaseURL(cfg *config.Config, rawURL string) string {
	if cfg.BaseURL == "" {
		return rawURL
	}
	if u, err := neturl.Parse(rawURL); err == nil && u.IsAbs() {
		return rawURL
	}
	return fhttp.JoinURL(cfg.BaseURL, rawURL)
}

// sessionInit holds the per-invocation overlay shared by request and call.
func sessionInit() fhttp.Init {
	var init fhttp.Init
	if requestIDFlag {
		init.Headers = map[string]string{"X-Request-Id": uuid.New().String()}
	}
	if noParseFlag {
		init.ParseBody = fhttp.Bool(false)
	}
	return init
}

// requestInit builds the call overlay from the request flags.
func requestInit() (fhttp.Init, error) {
	init := fhttp.Init{Method: strings.ToUpper(methodFlag)}

	if len(queryFlags) > 0 {
		query := make(neturl.Values, len(queryFlags))
		for _, q := range queryFlags {
			key, value, _ := strings.Cut(q, "=")
			if key == "" {
				return init, fmt.Errorf("invalid query parameter %q: expected key=value", q)
			}
			query.Add(key, os.ExpandEnv(value))
		}
		init.Query = query
	}

	if dataFlag != "" && jsonBodyFlag != "" {
		return init, errors.New("--data and --json-body are mutually exclusive")
	}

	if dataFlag != "" {
		body, err := readData(dataFlag)
		if err != nil {
			return init, err
		}
		init.Body = body
	}

	if jsonBodyFlag != "" {
		body, err := readData(jsonBodyFlag)
		if err != nil {
			return init, err
		}
		var value any
		if err := json.Unmarshal(body, &value); err != nil {
			return init, fmt.Errorf("invalid --json-body: %w", err)
		}
		init.JSONBody = value
	}

	return init, nil
}

// readData returns value, or the contents of the file when value is @path.
func readData(value string) ([]byte, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return []byte(value), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read body file: %w", err)
	}
	return data, nil
}

// send runs fetch, reports the response through formatter and maps failures
// to exit codes.
func send(ctx context.Context, formatter Formatter, fetch func(context.Context) (*fhttp.Response, error)) error {
	started := time.Now()

	var schema []byte
	if schemaFlag != "" {
		data, err := os.ReadFile(schemaFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot read schema: %w", err))
		}
		schema = data
	}

	resp, err := fetch(ctx)
	if err != nil {
		formatter.FormatError(err)
		if flushErr := flush(formatter, started); flushErr != nil {
			return flushErr
		}
		code := ExitNetworkError
		if errors.Is(err, fhttp.ErrUnsupportedMethod) || errors.Is(err, fhttp.ErrInvalidQuery) {
			code = ExitUsageError
		}
		return &exitError{code: code, err: err, reported: true}
	}

	if selectFlag != "" {
		formatter.FormatSelection(resp, selectFlag)
	} else {
		formatter.FormatResponse(resp)
	}

	var schemaErr error
	if schema != nil {
		schemaErr = resp.ValidateSchema(schema)
		formatter.FormatSchema(schemaErr)
	}

	if err := flush(formatter, started); err != nil {
		return err
	}

	if schemaErr != nil {
		return &exitError{code: ExitSchemaMismatch, err: schemaErr, reported: true}
	}
	if failFlag && !resp.IsSuccess() {
		return &exitError{code: ExitHTTPError, err: fmt.Errorf("request failed: %s", resp.Status)}
	}
	return nil
}

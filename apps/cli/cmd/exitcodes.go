package cmd

// Exit codes for fetchling CLI
const (
	// ExitSuccess indicates the request completed
	ExitSuccess = 0

	// ExitHTTPError indicates a non-2xx response while --fail is set
	ExitHTTPError = 1

	// ExitParseError indicates a resource tree parsing error
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitSchemaMismatch indicates the response body failed --schema validation
	ExitSchemaMismatch = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

package output

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Responses []JSONResponse  `json:"responses,omitempty"`
	Resources []ResourceEntry `json:"resources,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Duration  float64         `json:"duration"`
	Time      string          `json:"time"`
}

// JSONResponse represents response details
type JSONResponse struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
	Data       any               `json:"data,omitempty"`
	Selected   any               `json:"selected,omitempty"`
	SchemaOK   *bool             `json:"schemaValid,omitempty"`
	SchemaErr  string            `json:"schemaError,omitempty"`
}

// JSONFormatter collects responses and writes them as one JSON document on Flush
type JSONFormatter struct {
	writer    io.Writer
	name      string
	responses []JSONResponse
	resources []ResourceEntry
	errors    []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:    os.Stdout,
		responses: make([]JSONResponse, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResponse(resp *fhttp.Response) {
	entry := JSONResponse{
		Method:     resp.Method,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Duration:   float64(resp.DurationMs()),
	}

	if len(resp.Header) > 0 {
		entry.Headers = make(map[string]string, len(resp.Header))
		for k, v := range resp.Header {
			entry.Headers[k] = strings.Join(v, ", ")
		}
	}

	switch data := resp.Data.(type) {
	case []byte:
		// encoding/json would base64 the raw bytes; report the size instead
		entry.Data = formatValue(data, 0)
	default:
		entry.Data = data
	}

	f.responses = append(f.responses, entry)
}

// FormatSelection records the response with the value at a gjson path of its body.
func (f *JSONFormatter) FormatSelection(resp *fhttp.Response, path string) {
	f.FormatResponse(resp)
	if result := resp.Get(path); result.Exists() {
		f.responses[len(f.responses)-1].Selected = result.Value()
	}
}

// FormatSchema attaches the schema validation outcome to the last response.
func (f *JSONFormatter) FormatSchema(err error) {
	if len(f.responses) == 0 {
		return
	}
	last := &f.responses[len(f.responses)-1]
	valid := err == nil
	last.SchemaOK = &valid
	if err != nil {
		last.SchemaErr = err.Error()
	}
}

func (f *JSONFormatter) FormatResources(name string, entries []ResourceEntry) {
	f.name = name
	f.resources = append(f.resources, entries...)
}

func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		Responses: f.responses,
		Resources: f.resources,
		Errors:    f.errors,
		Duration:  float64(totalDuration.Milliseconds()),
		Time:      time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

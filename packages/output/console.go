package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

// ResourceEntry describes one node of a resource tree listing.
type ResourceEntry struct {
	Path     string   `json:"path"`
	URL      string   `json:"url"`
	Methods  []string `json:"methods"`
	Instance bool     `json:"instance,omitempty"`
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func statusColor(resp *fhttp.Response) *color.Color {
	switch {
	case resp.IsSuccess():
		return color.New(color.FgGreen)
	case resp.IsRedirect():
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func (f *ConsoleFormatter) FormatResponse(resp *fhttp.Response) {
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	status := statusColor(resp).SprintFunc()

	fmt.Fprintf(f.writer, "%s %s\n", bold(resp.Method), resp.URL)
	fmt.Fprintf(f.writer, "%s %s\n", status(resp.Status), cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))

	if f.verbose {
		keys := make([]string, 0, len(resp.Header))
		for k := range resp.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(f.writer, "  %s: %s\n", k, strings.Join(resp.Header[k], ", "))
		}
		fmt.Fprintf(f.writer, "  Data: %s\n", formatValue(resp.Data, 100))
	}

	if len(resp.Body) == 0 {
		return
	}

	fmt.Fprintf(f.writer, "\n")
	if resp.IsJSON() {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.Body, "", "  "); err == nil {
			fmt.Fprintf(f.writer, "%s\n", pretty.String())
			return
		}
	}
	fmt.Fprintf(f.writer, "%s\n", resp.BodyString())
}

// FormatSelection prints only the value at a gjson path of the response body.
func (f *ConsoleFormatter) FormatSelection(resp *fhttp.Response, path string) {
	result := resp.Get(path)
	if !result.Exists() {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(f.writer, "%s %s\n", yellow("No match:"), path)
		return
	}
	fmt.Fprintf(f.writer, "%s\n", result.String())
}

// FormatSchema reports the outcome of validating a body against a JSON schema.
func (f *ConsoleFormatter) FormatSchema(err error) {
	if err == nil {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(f.writer, "%s response matches schema\n", green("✓"))
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("✗"), err)
}

func (f *ConsoleFormatter) FormatResources(name string, entries []ResourceEntry) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold(name))
	for _, e := range entries {
		label := e.Path
		if label == "" {
			label = "."
		}
		depth := strings.Count(e.Path, ".")
		if e.Path != "" {
			depth++
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(f.writer, "%s%s %s %s", indent, label, cyan(strings.Join(e.Methods, ",")), dim(e.URL))
		if e.Instance {
			fmt.Fprintf(f.writer, " %s", dim("[:id]"))
		}
		fmt.Fprintf(f.writer, "\n")
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("fetchling"), version)
}

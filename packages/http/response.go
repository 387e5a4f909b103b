package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaMismatch is returned by ValidateSchema when the body does not satisfy the schema.
var ErrSchemaMismatch = errors.New("response does not match schema")

type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// Data is the body parsed according to the request's Accept header:
	// any for JSON, []byte for octet-stream, string otherwise. It is nil when
	// parsing was disabled or failed.
	Data any

	Duration time.Duration
	URL      string
	Method   string
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// JSON decodes the raw body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Get looks up a gjson path in the raw body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// ValidateSchema checks the raw body against a JSON schema document.
func (r *Response) ValidateSchema(schema []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(r.Body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(errs, "; "))
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), MIMEJSON)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

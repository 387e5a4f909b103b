package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

const (
	// MIMEJSON is sent as Accept when Init.JSON is set and as Content-Type for JSON bodies
	MIMEJSON = "application/json"
	// MIMEOctetStream as the request Accept makes Response.Data hold the raw bytes
	MIMEOctetStream = "application/octet-stream"
)

// ErrInvalidQuery is returned when Init.Query cannot be turned into query parameters.
var ErrInvalidQuery = errors.New("invalid query")

// RedirectMode controls what happens when the server answers with a redirect.
type RedirectMode string

const (
	// RedirectFollow follows redirects up to the client's limit
	RedirectFollow RedirectMode = "follow"
	// RedirectManual returns the redirect response itself
	RedirectManual RedirectMode = "manual"
	// RedirectError fails the request on the first redirect
	RedirectError RedirectMode = "error"
)

// Credentials are sent as an HTTP Basic Authorization header.
type Credentials struct {
	Username string
	Password string
}

// Init is the request configuration carried by a Resource, and the overlay
// applied on top of it by Derive and Fetch. Zero-valued fields are unset and
// leave the inherited value alone.
type Init struct {
	Method  string
	Headers map[string]string
	Body    []byte

	// JSONBody is marshalled to JSON and replaces Body when non-nil.
	JSONBody any

	// Query accepts url.Values, map[string]string, map[string][]string,
	// map[string]any, an encoded string (leading "?" optional) or a struct
	// with `schema` tags.
	Query any

	JSON      *bool
	ParseBody *bool

	Credentials *Credentials
	Redirect    RedirectMode
}

// Bool returns a pointer to b, for the optional Init flags.
func Bool(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// rootInit is the configuration every Resource tree starts from.
func rootInit() Init {
	return Init{
		ParseBody: Bool(true),
		JSON:      Bool(false),
	}
}

// Merge returns a new Init with every set field of other on top of i.
// Headers are merged key by key. Neither i nor other is modified, and the
// result shares no maps or slices with other.
func (i Init) Merge(other Init) Init {
	result := i

	result.Headers = mergeHeaders(i.Headers, other.Headers)

	if other.Method != "" {
		result.Method = other.Method
	}
	if other.Body != nil {
		result.Body = bytes.Clone(other.Body)
	}
	if other.JSONBody != nil {
		result.JSONBody = copyValue(other.JSONBody)
	}
	if other.Query != nil {
		result.Query = copyValue(other.Query)
	}
	if other.JSON != nil {
		result.JSON = Bool(*other.JSON)
	}
	if other.ParseBody != nil {
		result.ParseBody = Bool(*other.ParseBody)
	}
	if other.Credentials != nil {
		creds := *other.Credentials
		result.Credentials = &creds
	}
	if other.Redirect != "" {
		result.Redirect = other.Redirect
	}

	return result
}

// Header returns the value of a header, matching the name case-insensitively.
func (i Init) Header(name string) string {
	return i.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

func (i Init) parseBody() bool {
	return getBool(i.ParseBody, true)
}

func (i Init) json() bool {
	return getBool(i.JSON, false)
}

// clone copies the maps and pointers of i so the result can be modified freely.
func (i Init) clone() Init {
	c := i.Merge(Init{})
	if i.Body != nil {
		c.Body = bytes.Clone(i.Body)
	}
	c.JSONBody = copyValue(i.JSONBody)
	c.Query = copyValue(i.Query)
	if i.JSON != nil {
		c.JSON = Bool(*i.JSON)
	}
	if i.ParseBody != nil {
		c.ParseBody = Bool(*i.ParseBody)
	}
	if i.Credentials != nil {
		creds := *i.Credentials
		c.Credentials = &creds
	}
	return c
}

// copyValue copies the map and slice forms accepted by Query and JSONBody,
// nested maps and slices included. Other values are returned as is.
func copyValue(v any) any {
	switch val := v.(type) {
	case url.Values:
		return url.Values(copyStrings(val))
	case map[string][]string:
		return copyStrings(val)
	case map[string]string:
		c := make(map[string]string, len(val))
		for k, s := range val {
			c[k] = s
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(val))
		for k, item := range val {
			c[k] = copyValue(item)
		}
		return c
	case []any:
		c := make([]any, len(val))
		for i, item := range val {
			c[i] = copyValue(item)
		}
		return c
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return bytes.Clone(val)
	default:
		return v
	}
}

func copyStrings(m map[string][]string) map[string][]string {
	c := make(map[string][]string, len(m))
	for k, v := range m {
		c[k] = append([]string(nil), v...)
	}
	return c
}

func mergeAll(base Init, overlays []Init) Init {
	for _, o := range overlays {
		base = base.Merge(o)
	}
	return base
}

// mergeHeaders copies base and overlay into a fresh map keyed by canonical
// header names, overlay winning on collisions.
func mergeHeaders(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	for k, v := range overlay {
		merged[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return merged
}

var queryEncoder = schema.NewEncoder()

// EncodeQuery turns any of the Init.Query forms into an encoded query string.
func EncodeQuery(query any) (string, error) {
	switch q := query.(type) {
	case nil:
		return "", nil
	case url.Values:
		return q.Encode(), nil
	case map[string][]string:
		return url.Values(q).Encode(), nil
	case map[string]string:
		values := make(url.Values, len(q))
		for k, v := range q {
			values.Set(k, v)
		}
		return values.Encode(), nil
	case map[string]any:
		values := make(url.Values, len(q))
		for k, v := range q {
			switch items := v.(type) {
			case []string:
				for _, item := range items {
					values.Add(k, item)
				}
			case []any:
				for _, item := range items {
					values.Add(k, fmt.Sprint(item))
				}
			default:
				values.Set(k, fmt.Sprint(v))
			}
		}
		return values.Encode(), nil
	case string:
		values, err := url.ParseQuery(strings.TrimPrefix(q, "?"))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return values.Encode(), nil
	default:
		values := make(url.Values)
		if err := queryEncoder.Encode(query, values); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return values.Encode(), nil
	}
}

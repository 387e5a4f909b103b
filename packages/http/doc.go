// Package http builds hierarchical API clients on top of net/http.
//
// A Resource is an immutable handle on one URL plus the request
// configuration (an Init) inherited from its ancestors:
//   - Derive joins a relative path onto the resource URL and layers an Init
//     overlay on the inherited configuration
//   - Fetch, FetchURL and the per-verb helpers issue a single request and
//     read the whole response body
//   - Responses are parsed according to the request's Accept header into
//     Response.Data (JSON, raw bytes or text)
//
// Headers merge key by key; every other Init field replaces the inherited
// value when set.
package http

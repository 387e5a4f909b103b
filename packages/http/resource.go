package http

import (
	"context"
	"net/http"
	neturl "net/url"
)

// Resource is one addressable URL plus the request configuration inherited
// from the resources it was derived from. A Resource never changes after it
// is created, so it can be shared between goroutines.
type Resource struct {
	base   string
	init   Init
	client *Client
}

// New creates a root Resource on DefaultClient.
func New(rawURL string, init ...Init) *Resource {
	return DefaultClient.Resource(rawURL, init...)
}

// NewFromURL creates a root Resource on DefaultClient from a parsed URL.
func NewFromURL(u *neturl.URL, init ...Init) *Resource {
	return DefaultClient.ResourceFromURL(u, init...)
}

// NewFromRequest creates a root Resource on DefaultClient at the URL of req.
func NewFromRequest(req *http.Request, init ...Init) *Resource {
	return DefaultClient.ResourceFromRequest(req, init...)
}

// Resource creates a root Resource. The overlays are merged, in order, onto
// the defaults (ParseBody true, JSON false). No request is sent.
func (c *Client) Resource(rawURL string, init ...Init) *Resource {
	return &Resource{
		base:   rawURL,
		init:   mergeAll(rootInit(), init),
		client: c,
	}
}

func (c *Client) ResourceFromURL(u *neturl.URL, init ...Init) *Resource {
	if u == nil {
		return c.Resource("", init...)
	}
	return c.Resource(u.String(), init...)
}

// ResourceFromRequest uses only the URL of req; its method, headers and body
// are ignored.
func (c *Client) ResourceFromRequest(req *http.Request, init ...Init) *Resource {
	if req == nil {
		return c.Resource("", init...)
	}
	return c.ResourceFromURL(req.URL, init...)
}

// URL returns the resolved URL of the resource.
func (r *Resource) URL() string {
	return r.base
}

// Init returns a copy of the resource's effective configuration.
func (r *Resource) Init() Init {
	return r.init.clone()
}

// Derive returns a sub-resource at path, joined onto this resource's URL with
// JoinURL, whose configuration is init merged onto this resource's.
func (r *Resource) Derive(path string, init ...Init) *Resource {
	return &Resource{
		base:   JoinURL(r.base, path),
		init:   mergeAll(r.init, init),
		client: r.client,
	}
}

// Fetch sends a request to the resource URL with init merged onto the
// resource configuration for this call only.
func (r *Resource) Fetch(ctx context.Context, init ...Init) (*Response, error) {
	return r.client.Do(ctx, r.base, mergeAll(r.init, init))
}

// FetchURL is Fetch against rawURL instead of the resource URL.
func (r *Resource) FetchURL(ctx context.Context, rawURL string, init ...Init) (*Response, error) {
	return r.client.Do(ctx, rawURL, mergeAll(r.init, init))
}

func (r *Resource) Get(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodGet, init)
}

func (r *Resource) Post(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodPost, init)
}

func (r *Resource) Put(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodPut, init)
}

func (r *Resource) Delete(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodDelete, init)
}

func (r *Resource) Patch(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodPatch, init)
}

func (r *Resource) Head(ctx context.Context, init ...Init) (*Response, error) {
	return r.method(ctx, http.MethodHead, init)
}

// method forces the verb after the caller's overlays.
func (r *Resource) method(ctx context.Context, method string, init []Init) (*Response, error) {
	overlays := append(init[:len(init):len(init)], Init{Method: method})
	return r.Fetch(ctx, overlays...)
}

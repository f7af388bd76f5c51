package transfer

import (
	"context"
	"net/http"

	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/provider"
)

// ensure interface is implemented
var _ Client = (*HTTPClient)(nil)

// HTTPClient transfers location.HTTP locations with GET and POST.
type HTTPClient struct {
	client *http.Client
	*mover
}

// NewHTTPClient returns a client issuing requests through client. A nil
// client uses provider.NewHTTPClient defaults.
func NewHTTPClient(client *http.Client, opts Options) *HTTPClient {
	if client == nil {
		client = provider.NewHTTPClient(0)
	}
	return &HTTPClient{client: client, mover: newMover(opts)}
}

// Every file of a pushed tree is POSTed to the same URL; the endpoint tells
// them apart by content.
func (c *HTTPClient) remote(h location.HTTP) remote {
	ref := h.String()
	return remote{
		provider: provider.NewHTTPProvider(c.client, h.URL),
		ref:      ref,
		target:   func(string) string { return "" },
		refOf:    func(string) string { return ref },
	}
}

// Fetch downloads the URL into dir, naming the file after the last path
// segment of the URL.
func (c *HTTPClient) Fetch(ctx context.Context, loc location.Location, dir string) (string, error) {
	h, ok := loc.(location.HTTP)
	if !ok {
		return "", unsupported("fetch", loc, "http client")
	}
	return c.fetch(ctx, c.remote(h), h.Name(), dir)
}

// Push POSTs src, or each file below it, to the URL.
func (c *HTTPClient) Push(ctx context.Context, src string, loc location.Location) error {
	h, ok := loc.(location.HTTP)
	if !ok {
		return unsupported("push", loc, "http client")
	}
	return c.push(ctx, src, c.remote(h))
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ensure interface is implemented
var _ Provider = (*HTTPProvider)(nil)

// DefaultHTTPTimeout bounds a single request, including reading the body.
const DefaultHTTPTimeout = 30 * time.Minute

// NewHTTPClient returns the client shared by every HTTPProvider of a run.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// StatusError reports a response whose status is outside 2xx.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// HTTPProvider reads with GET and writes with POST against a single base URL.
// Paths are resolved relative to the base; an empty path addresses the base
// URL itself.
type HTTPProvider struct {
	client *http.Client
	base   *url.URL
}

// NewHTTPProvider creates a provider for base. A nil client uses
// http.DefaultClient.
func NewHTTPProvider(client *http.Client, base *url.URL) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client, base: base}
}

func (p *HTTPProvider) resolve(pth string) string {
	if pth == "" {
		return p.base.String()
	}
	return p.base.ResolveReference(&url.URL{Path: pth}).String()
}

// Stat is not supported: the remote size is learned from the GET response.
func (p *HTTPProvider) Stat(ctx context.Context, pth string) (FileInfo, error) {
	return nil, ErrUnsupported
}

// List is not supported: HTTP endpoints have no directory listing.
func (p *HTTPProvider) List(ctx context.Context, pth string) ([]FileInfo, error) {
	return nil, ErrUnsupported
}

// OpenRead issues a GET and returns the response body.
func (p *HTTPProvider) OpenRead(ctx context.Context, pth string) (io.ReadCloser, error) {
	target := p.resolve(pth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

// OpenWrite issues a POST whose body is whatever the caller writes. When
// metadata carries a size the request is sent with a Content-Length,
// otherwise it is chunked. Close waits for the response.
func (p *HTTPProvider) OpenWrite(ctx context.Context, pth string, metadata FileInfo) (io.WriteCloser, error) {
	target := p.resolve(pth)
	pr, pw := io.Pipe()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if metadata != nil && !metadata.IsDir() && metadata.Size() > 0 {
		req.ContentLength = metadata.Size()
	}

	errChan := make(chan error, 1)
	go func() {
		resp, err := p.client.Do(req)
		if err != nil {
			pr.CloseWithError(err)
			errChan <- err
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err = &StatusError{Method: http.MethodPost, URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
		}
		pr.CloseWithError(err)
		errChan <- err
	}()

	return &asyncHTTPWriter{pw: pw, errChan: errChan}, nil
}

type asyncHTTPWriter struct {
	pw      *io.PipeWriter
	errChan <-chan error
	done    bool
}

func (w *asyncHTTPWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *asyncHTTPWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.errChan
}

// Abort fails the request body so the client gives up on the POST.
func (w *asyncHTTPWriter) Abort(err error) error {
	if w.done {
		return nil
	}
	w.done = true
	if err == nil {
		err = errors.New("upload aborted")
	}
	w.pw.CloseWithError(err)
	<-w.errChan
	return nil
}

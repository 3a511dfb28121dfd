package jwks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"jwtkeys/jwterr"
)

// Fetcher is the abstract transport the cache uses to retrieve a JWKS
// document: the only I/O boundary in the package. Callers can
// substitute a test double or an alternate HTTP stack without
// touching Cache.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, headers map[string]string) ([]byte, error)
}

// HTTPFetcher is the default Fetcher, an HTTPS GET against uri.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with the given client, or a
// default client with no built-in timeout (timeouts are applied via
// the context the cache passes to Fetch) if client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, jwterr.FetchError("failed to build JWKS request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, jwterr.FetchError("JWKS fetch timed out", ctx.Err())
		}
		return nil, jwterr.FetchError("JWKS fetch failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, jwterr.NonRetryableFetchError(resp.StatusCode, "JWKS endpoint returned a non-200 status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jwterr.FetchError("failed to read JWKS response body", err)
	}
	return body, nil
}

// timeoutFetch wraps a Fetcher call with a deadline, surfacing
// FetchError uniformly on expiry regardless of whether the underlying
// transport or the context deadline fired first.
func timeoutFetch(ctx context.Context, f Fetcher, uri string, headers map[string]string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := f.Fetch(ctx, uri, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, jwterr.FetchError(fmt.Sprintf("fetch timed out after %s", timeout), ctx.Err())
		}
		return nil, err
	}
	return body, nil
}
